package telegram

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/danhigham/multigram/internal/domain"
)

const archiveFolderID = 1

// LoadChats announces the next limit chats of list. It fails with code 404
// once every chat of the list has been announced.
func (d *GotdDriver) LoadChats(ctx context.Context, clientID int32, list domain.ChatList, limit int32) error {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return err
	}

	folderID := 0
	switch list.Kind {
	case domain.ChatListArchive:
		folderID = archiveFolderID
	case domain.ChatListFolder:
		// Dialog filters are not mapped to chat lists.
		return tgerr.New(domain.CodeNotFound, "Not Found")
	}

	c.mu.Lock()
	iter, ok := c.lists[list]
	if !ok {
		iter = dialogs.NewQueryBuilder(c.api).GetDialogs().FolderID(folderID).BatchSize(int(limit)).Iter()
		c.lists[list] = iter
	}
	c.mu.Unlock()

	loaded := int32(0)
	for loaded < limit && iter.Next(ctx) {
		c.handleDialog(list, iter.Value())
		loaded++
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "iterate dialogs")
	}
	if loaded == 0 {
		return tgerr.New(domain.CodeNotFound, "Not Found")
	}
	c.emitUnreadCount(list)
	return nil
}

// handleDialog announces a dialog as a chat with its read state and its
// position in list.
func (c *gotdClient) handleDialog(list domain.ChatList, elem dialogs.Elem) {
	dlg, ok := elem.Dialog.(*tg.Dialog)
	if !ok {
		return
	}
	chatID, ok := c.ensureChat(dlg.Peer, elem.Entities)
	if !ok {
		c.logger.Debug("Skipping unresolved dialog")
		return
	}
	c.cachePeer(chatID, elem.Peer)

	c.emit(domain.UpdateChatReadInbox{
		ChatID:                 chatID,
		LastReadInboxMessageID: int64(dlg.ReadInboxMaxID),
		UnreadCount:            int32(dlg.UnreadCount),
	})
	c.emit(domain.UpdateChatReadOutbox{ChatID: chatID, LastReadOutboxMessageID: int64(dlg.ReadOutboxMaxID)})
	c.emit(domain.UpdateChatUnreadMentionCount{ChatID: chatID, UnreadMentionCount: int32(dlg.UnreadMentionsCount)})
	c.emit(domain.UpdateChatIsMarkedAsUnread{ChatID: chatID, IsMarkedAsUnread: dlg.UnreadMark})

	c.emit(domain.UpdateChatNotificationSettings{ChatID: chatID, NotificationSettings: chatNotificationSettings(&dlg.NotifySettings)})

	var last *domain.Message
	date := 0
	if msg, ok := elem.Last.(*tg.Message); ok {
		m := convertMessage(msg, c.self())
		last = &m
		date = msg.Date
	}

	c.mu.Lock()
	position := domain.ChatPosition{List: list, Order: chatOrder(date, dlg.TopMessage), IsPinned: dlg.Pinned}
	if dlg.Pinned {
		position.Order = pinnedOrder(c.pinned[list])
		c.pinned[list]++
	}
	c.chatLists[chatID] = list
	c.unread[chatID] = int32(dlg.UnreadCount)
	c.pinnedChat[chatID] = dlg.Pinned
	c.mu.Unlock()

	c.emit(domain.UpdateChatLastMessage{ChatID: chatID, LastMessage: last, Positions: []domain.ChatPosition{position}})
}

// livePositions returns the position a new message moves its chat to. Pinned
// chats keep their place.
func (c *gotdClient) livePositions(chatID int64, msg *tg.Message) []domain.ChatPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pinnedChat[chatID] {
		return nil
	}
	list, ok := c.chatLists[chatID]
	if !ok {
		list = domain.ChatList{Kind: domain.ChatListMain}
		c.chatLists[chatID] = list
	}
	return []domain.ChatPosition{{List: list, Order: chatOrder(msg.Date, msg.ID)}}
}

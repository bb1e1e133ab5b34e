package telegram

import (
	"github.com/gotd/td/tg"

	"github.com/danhigham/multigram/internal/domain"
)

// entityLookup resolves peers mentioned by a dialog or an update.
type entityLookup interface {
	User(id int64) (*tg.User, bool)
	Chat(id int64) (*tg.Chat, bool)
	Channel(id int64) (*tg.Channel, bool)
}

// updateEntities adapts the entities attached to an update.
type updateEntities tg.Entities

func (e updateEntities) User(id int64) (*tg.User, bool) {
	u, ok := e.Users[id]
	return u, ok
}

func (e updateEntities) Chat(id int64) (*tg.Chat, bool) {
	c, ok := e.Chats[id]
	return c, ok
}

func (e updateEntities) Channel(id int64) (*tg.Channel, bool) {
	c, ok := e.Channels[id]
	return c, ok
}

var allPermissions = domain.ChatPermissions{
	CanSendMessages:      true,
	CanSendMediaMessages: true,
	CanSendPolls:         true,
	CanAddWebPagePreview: true,
	CanChangeInfo:        true,
	CanInviteUsers:       true,
	CanPinMessages:       true,
}

// user converts u and registers its profile photo for download.
func (c *gotdClient) user(u *tg.User) domain.User {
	user := convertUser(u)
	if photo, ok := u.Photo.(*tg.UserProfilePhoto); ok {
		file := c.photoFile(photo.PhotoID, &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash})
		user.ProfilePhoto = &file
	}
	return user
}

// ensureUser announces a user the first time it is seen.
func (c *gotdClient) ensureUser(u *tg.User) {
	c.cachePeer(userChatID(u.ID), &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash})

	c.mu.Lock()
	known := c.knownUsers[u.ID]
	c.knownUsers[u.ID] = true
	c.mu.Unlock()
	if known {
		return
	}
	c.emit(domain.UpdateUser{User: c.user(u)})
}

func (c *gotdClient) knownChat(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.knownChats[chatID]
}

func (c *gotdClient) knownUser(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.knownUsers[userID]
}

// ensureChat announces the chat of peer, and the entities it is backed by,
// the first time it is seen. It reports false if the peer cannot be resolved.
func (c *gotdClient) ensureChat(peer tg.PeerClass, lookup entityLookup) (int64, bool) {
	chatID := peerChatID(peer)
	if chatID == 0 {
		return 0, false
	}
	if c.knownChat(chatID) {
		return chatID, true
	}

	chat := domain.Chat{ID: chatID, Permissions: allPermissions}
	var photoPeer tg.InputPeerClass
	var photoID int64

	switch p := peer.(type) {
	case *tg.PeerUser:
		u, ok := lookup.User(p.UserID)
		if !ok {
			return 0, false
		}
		c.ensureUser(u)
		chat.Type = domain.ChatType{Kind: domain.ChatTypePrivate, UserID: u.ID}
		chat.Title = formatUserName(u)
		if photo, ok := u.Photo.(*tg.UserProfilePhoto); ok {
			photoID = photo.PhotoID
			photoPeer = &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}
		}
	case *tg.PeerChat:
		ch, ok := lookup.Chat(p.ChatID)
		if !ok {
			return 0, false
		}
		photoPeer = &tg.InputPeerChat{ChatID: ch.ID}
		c.cachePeer(chatID, photoPeer)
		c.emit(domain.UpdateBasicGroup{BasicGroup: domain.BasicGroup{
			ID:          ch.ID,
			MemberCount: int32(ch.ParticipantsCount),
			IsActive:    !ch.Deactivated,
		}})
		chat.Type = domain.ChatType{Kind: domain.ChatTypeBasicGroup, BasicGroupID: ch.ID}
		chat.Title = ch.Title
		if photo, ok := ch.Photo.(*tg.ChatPhoto); ok {
			photoID = photo.PhotoID
		}
	case *tg.PeerChannel:
		ch, ok := lookup.Channel(p.ChannelID)
		if !ok {
			return 0, false
		}
		photoPeer = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
		c.cachePeer(chatID, photoPeer)
		members, _ := ch.GetParticipantsCount()
		c.emit(domain.UpdateSupergroup{Supergroup: domain.Supergroup{
			ID:          ch.ID,
			Username:    ch.Username,
			Date:        int32(ch.Date),
			MemberCount: int32(members),
			IsChannel:   ch.Broadcast,
			IsVerified:  ch.Verified,
		}})
		chat.Type = domain.ChatType{Kind: domain.ChatTypeSupergroup, SupergroupID: ch.ID, IsChannel: ch.Broadcast}
		chat.Title = ch.Title
		if ch.Broadcast {
			chat.Permissions = domain.ChatPermissions{}
		}
		if photo, ok := ch.Photo.(*tg.ChatPhoto); ok {
			photoID = photo.PhotoID
		}
	}

	if photoID != 0 {
		chat.Photo = &domain.ChatPhotoInfo{
			Small: c.photoFile(photoID, photoPeer),
			Big:   c.photoFile(photoID, photoPeer),
		}
	}

	c.mu.Lock()
	c.knownChats[chatID] = true
	c.mu.Unlock()
	c.emit(domain.UpdateNewChat{Chat: chat})
	return chatID, true
}

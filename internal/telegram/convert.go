package telegram

import (
	"github.com/gotd/td/tg"

	"github.com/danhigham/multigram/internal/domain"
)

// Chat ids follow the usual client convention: users keep their id, basic
// groups are negated and channels are offset below -1e12.
const channelIDOffset = 1_000_000_000_000

func userChatID(userID int64) int64       { return userID }
func basicGroupChatID(chatID int64) int64 { return -chatID }
func channelChatID(channelID int64) int64 { return -(channelIDOffset + channelID) }

// peerChatID returns the chat id of a peer.
func peerChatID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return userChatID(p.UserID)
	case *tg.PeerChat:
		return basicGroupChatID(p.ChatID)
	case *tg.PeerChannel:
		return channelChatID(p.ChannelID)
	default:
		return 0
	}
}

// inputPeerChatID returns the chat id of an input peer.
func inputPeerChatID(peer tg.InputPeerClass) int64 {
	switch p := peer.(type) {
	case *tg.InputPeerUser:
		return userChatID(p.UserID)
	case *tg.InputPeerChat:
		return basicGroupChatID(p.ChatID)
	case *tg.InputPeerChannel:
		return channelChatID(p.ChannelID)
	default:
		return 0
	}
}

const pinnedOrderBase = int64(1) << 62

// chatOrder orders chats by the date of their last message, then by its id.
func chatOrder(date, messageID int) int64 {
	return int64(date)<<31 | int64(messageID&0x7fffffff)
}

// pinnedOrder places pinned chats above every other chat, keeping the order
// in which the server listed them.
func pinnedOrder(index int) int64 {
	return pinnedOrderBase + int64(1<<20-index)
}

// formatUserName returns a display name for a user.
func formatUserName(u *tg.User) string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Unknown"
}

// usersToMap converts a UserClass slice to a map of User by ID.
func usersToMap(users []tg.UserClass) map[int64]*tg.User {
	m := make(map[int64]*tg.User, len(users))
	for _, u := range users {
		user, ok := u.(*tg.User)
		if !ok {
			continue
		}
		m[user.ID] = user
	}
	return m
}

func convertUserStatus(status tg.UserStatusClass) domain.UserStatus {
	switch s := status.(type) {
	case *tg.UserStatusOnline:
		return domain.UserStatus{Kind: domain.UserStatusOnline, Expires: int32(s.Expires)}
	case *tg.UserStatusOffline:
		return domain.UserStatus{Kind: domain.UserStatusOffline, WasOnline: int32(s.WasOnline)}
	case *tg.UserStatusRecently:
		return domain.UserStatus{Kind: domain.UserStatusRecently}
	case *tg.UserStatusLastWeek:
		return domain.UserStatus{Kind: domain.UserStatusLastWeek}
	case *tg.UserStatusLastMonth:
		return domain.UserStatus{Kind: domain.UserStatusLastMonth}
	default:
		return domain.UserStatus{Kind: domain.UserStatusEmpty}
	}
}

func convertUser(u *tg.User) domain.User {
	user := domain.User{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Username:    u.Username,
		PhoneNumber: u.Phone,
		Status:      convertUserStatus(u.Status),
		IsContact:   u.Contact,
	}
	switch {
	case u.Deleted:
		user.Type = domain.UserTypeDeleted
	case u.Bot:
		user.Type = domain.UserTypeBot
	default:
		user.Type = domain.UserTypeRegular
	}
	return user
}

func convertEntities(entities []tg.MessageEntityClass) []domain.TextEntity {
	out := make([]domain.TextEntity, 0, len(entities))
	for _, entity := range entities {
		e := domain.TextEntity{Offset: int32(entity.GetOffset()), Length: int32(entity.GetLength())}
		switch v := entity.(type) {
		case *tg.MessageEntityBold:
			e.Type = domain.EntityBold
		case *tg.MessageEntityItalic:
			e.Type = domain.EntityItalic
		case *tg.MessageEntityUnderline:
			e.Type = domain.EntityUnderline
		case *tg.MessageEntityStrike:
			e.Type = domain.EntityStrikethrough
		case *tg.MessageEntitySpoiler:
			e.Type = domain.EntitySpoiler
		case *tg.MessageEntityCode:
			e.Type = domain.EntityCode
		case *tg.MessageEntityPre:
			e.Type = domain.EntityPre
			e.Language = v.Language
		case *tg.MessageEntityTextURL:
			e.Type = domain.EntityTextURL
			e.URL = v.URL
		case *tg.MessageEntityURL:
			e.Type = domain.EntityURL
		case *tg.MessageEntityEmail:
			e.Type = domain.EntityEmail
		case *tg.MessageEntityMention:
			e.Type = domain.EntityMention
		case *tg.MessageEntityMentionName:
			e.Type = domain.EntityMentionName
		case *tg.MessageEntityHashtag:
			e.Type = domain.EntityHashtag
		case *tg.MessageEntityBotCommand:
			e.Type = domain.EntityBotCommand
		case *tg.MessageEntityBlockquote:
			e.Type = domain.EntityBlockquote
		default:
			// Unknown entity types are passed through unchanged.
			continue
		}
		out = append(out, e)
	}
	return out
}

// convertMessage converts a tg.Message to a domain.Message. In private chats
// FromID is often nil, so the sender is derived from the peer and Out flag.
func convertMessage(msg *tg.Message, selfID int64) domain.Message {
	chatID := peerChatID(msg.PeerID)

	var sender domain.MessageSender
	switch p := msg.FromID.(type) {
	case *tg.PeerUser:
		sender.UserID = p.UserID
	case *tg.PeerChat:
		sender.ChatID = basicGroupChatID(p.ChatID)
	case *tg.PeerChannel:
		sender.ChatID = channelChatID(p.ChannelID)
	default:
		switch {
		case msg.Out:
			sender.UserID = selfID
		case chatID > 0:
			sender.UserID = chatID
		default:
			sender.ChatID = chatID
		}
	}

	editDate, _ := msg.GetEditDate()
	return domain.Message{
		ID:                    int64(msg.ID),
		ChatID:                chatID,
		Sender:                sender,
		Date:                  int32(msg.Date),
		EditDate:              int32(editDate),
		IsOutgoing:            msg.Out,
		ContainsUnreadMention: msg.Mentioned && msg.MediaUnread,
		Content: domain.MessageContent{
			Text: domain.FormattedText{Text: msg.Message, Entities: convertEntities(msg.Entities)},
		},
	}
}

func convertCountries(countries []tg.HelpCountry) []domain.Country {
	out := make([]domain.Country, 0, len(countries))
	for _, c := range countries {
		country := domain.Country{
			CountryCode: c.ISO2,
			Name:        c.DefaultName,
			EnglishName: c.DefaultName,
			IsHidden:    c.Hidden,
		}
		if c.Name != "" {
			country.Name = c.Name
		}
		for _, code := range c.CountryCodes {
			country.CallingCodes = append(country.CallingCodes, code.CountryCode)
		}
		out = append(out, country)
	}
	return out
}

func convertSentCodeType(t tg.AuthSentCodeTypeClass) domain.AuthenticationCodeType {
	switch v := t.(type) {
	case *tg.AuthSentCodeTypeApp:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeTelegramMessage, Length: int32(v.Length)}
	case *tg.AuthSentCodeTypeSMS:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeSms, Length: int32(v.Length)}
	case *tg.AuthSentCodeTypeCall:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeCall, Length: int32(v.Length)}
	case *tg.AuthSentCodeTypeFlashCall:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeFlashCall}
	case *tg.AuthSentCodeTypeMissedCall:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeMissedCall, Length: int32(v.Length)}
	case *tg.AuthSentCodeTypeFragmentSMS:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeFragment, Length: int32(v.Length)}
	default:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeSms}
	}
}

func convertCodeType(t tg.AuthCodeTypeClass) domain.AuthenticationCodeType {
	switch t.(type) {
	case *tg.AuthCodeTypeCall:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeCall}
	case *tg.AuthCodeTypeFlashCall:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeFlashCall}
	case *tg.AuthCodeTypeMissedCall:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeMissedCall}
	case *tg.AuthCodeTypeFragmentSMS:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeFragment}
	default:
		return domain.AuthenticationCodeType{Kind: domain.CodeTypeSms}
	}
}

// codeInfo describes a sent code the way the authorization state reports it.
func codeInfo(phone string, sent *tg.AuthSentCode) domain.AuthenticationCodeInfo {
	info := domain.AuthenticationCodeInfo{
		PhoneNumber: phone,
		Type:        convertSentCodeType(sent.Type),
	}
	if next, ok := sent.GetNextType(); ok {
		nextType := convertCodeType(next)
		info.NextType = &nextType
	}
	if timeout, ok := sent.GetTimeout(); ok {
		info.Timeout = int32(timeout)
	}
	return info
}

func sendMessageAction(action domain.ChatActionKind) tg.SendMessageActionClass {
	switch action {
	case domain.ChatActionRecordingVoice:
		return &tg.SendMessageRecordAudioAction{}
	case domain.ChatActionUploadingPhoto:
		return &tg.SendMessageUploadPhotoAction{}
	case domain.ChatActionUploadingDocument:
		return &tg.SendMessageUploadDocumentAction{}
	case domain.ChatActionChoosingSticker:
		return &tg.SendMessageChooseStickerAction{}
	case domain.ChatActionCancel:
		return &tg.SendMessageCancelAction{}
	default:
		return &tg.SendMessageTypingAction{}
	}
}

func convertChatAction(action tg.SendMessageActionClass) domain.ChatActionKind {
	switch action.(type) {
	case *tg.SendMessageRecordAudioAction:
		return domain.ChatActionRecordingVoice
	case *tg.SendMessageUploadPhotoAction:
		return domain.ChatActionUploadingPhoto
	case *tg.SendMessageUploadDocumentAction:
		return domain.ChatActionUploadingDocument
	case *tg.SendMessageChooseStickerAction:
		return domain.ChatActionChoosingSticker
	case *tg.SendMessageCancelAction:
		return domain.ChatActionCancel
	default:
		return domain.ChatActionTyping
	}
}

package client

import (
	"time"

	"parley/internal/models"
	"parley/internal/storage"
)

// Conversions between the live roster model and the bbolt cache
// records. The cache exists so the chat list renders before the first
// roster fetch completes; it is never authoritative.

func toDBConversations(conversations []models.Conversation) []storage.DBConversation {
	out := make([]storage.DBConversation, 0, len(conversations))
	for _, c := range conversations {
		if c.Provisional {
			continue
		}
		dbc := storage.DBConversation{
			ID:          c.ID,
			IsGroup:     c.IsGroup,
			GroupName:   c.GroupName,
			GroupAvatar: c.GroupAvatar,
			UpdatedAt:   c.UpdatedAt.Unix(),
		}
		for _, p := range c.Participants {
			dbc.Participants = append(dbc.Participants, storage.DBParticipant{
				ID:        p.ID,
				FirstName: p.FirstName,
				LastName:  p.LastName,
				AvatarURL: p.AvatarURL,
			})
		}
		if c.LastMessage != nil && c.LastMessage.State == models.MessageConfirmed {
			dbc.LastMessage = &storage.DBMessage{
				ID:        c.LastMessage.ID,
				Sender:    c.LastMessage.Sender,
				Content:   c.LastMessage.Content,
				Timestamp: c.LastMessage.Timestamp.Unix(),
			}
		}
		out = append(out, dbc)
	}
	return out
}

func fromDBConversations(records []storage.DBConversation) []models.Conversation {
	out := make([]models.Conversation, 0, len(records))
	for _, rec := range records {
		c := models.Conversation{
			ID:          rec.ID,
			IsGroup:     rec.IsGroup,
			GroupName:   rec.GroupName,
			GroupAvatar: rec.GroupAvatar,
			UpdatedAt:   time.Unix(rec.UpdatedAt, 0),
		}
		for _, p := range rec.Participants {
			c.Participants = append(c.Participants, models.Participant{
				ID:        p.ID,
				FirstName: p.FirstName,
				LastName:  p.LastName,
				AvatarURL: p.AvatarURL,
			})
		}
		if rec.LastMessage != nil {
			c.LastMessage = &models.Message{
				ID:             rec.LastMessage.ID,
				Sender:         rec.LastMessage.Sender,
				ConversationID: rec.ID,
				Content:        rec.LastMessage.Content,
				Timestamp:      time.Unix(rec.LastMessage.Timestamp, 0),
				State:          models.MessageConfirmed,
			}
		}
		out = append(out, c)
	}
	return out
}

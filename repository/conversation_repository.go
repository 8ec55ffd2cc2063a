package repository

import (
	"time"

	"todo-chat/models"

	"gorm.io/gorm"
)

type ConversationRepository interface {
	CreateConversation(conversation *models.Conversation) error
	GetConversationByID(conversationID string) (models.Conversation, error)
	TouchConversation(conversationID string) error
	CreateMessage(message *models.Message) error
	// GetRecentMessages returns the most recent messages of a conversation,
	// oldest first, capped at limit.
	GetRecentMessages(conversationID string, limit int) ([]models.Message, error)
	CountMessages(conversationID string) (int64, error)
}

type ConversationRepositoryImpl struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &ConversationRepositoryImpl{db: db}
}

func (r *ConversationRepositoryImpl) CreateConversation(conversation *models.Conversation) error {
	return r.db.Create(conversation).Error
}

func (r *ConversationRepositoryImpl) GetConversationByID(conversationID string) (models.Conversation, error) {
	var conversation models.Conversation
	result := r.db.Where("id = ?", conversationID).First(&conversation)
	if result.Error != nil {
		return models.Conversation{}, result.Error
	}
	return conversation, nil
}

func (r *ConversationRepositoryImpl) TouchConversation(conversationID string) error {
	result := r.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now().UTC())
	return result.Error
}

func (r *ConversationRepositoryImpl) CreateMessage(message *models.Message) error {
	return r.db.Create(message).Error
}

func (r *ConversationRepositoryImpl) GetRecentMessages(conversationID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages)
	if result.Error != nil {
		return nil, result.Error
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *ConversationRepositoryImpl) CountMessages(conversationID string) (int64, error) {
	var count int64
	result := r.db.Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

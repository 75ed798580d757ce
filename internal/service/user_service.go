package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/repository"
	"go.uber.org/zap"
)

type UserService struct {
	users repository.UserRepository
	log   *zap.Logger
}

func NewUserService(users repository.UserRepository, log *zap.Logger) *UserService {
	return &UserService{users: users, log: log}
}

// RegisterInput: данные, накопленные за три шага регистрации.
type RegisterInput struct {
	ChatID   int64
	Username string
	FullName string
	Company  string
	Shop     string
}

// userFieldMaxLen совпадает с varchar(255) в users (символы, не байты).
const userFieldMaxLen = 255

// ValidateFullName требует минимум два слова и нормализует пробелы.
func ValidateFullName(name string) (string, error) {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return "", &errs.ValidationError{Field: "full_name", Reason: "first and last name are required"}
	}
	name = strings.Join(parts, " ")
	if utf8.RuneCountInString(name) > userFieldMaxLen {
		return "", &errs.ValidationError{Field: "full_name", Reason: "too long"}
	}
	return name, nil
}

// ValidateRequired проверяет непустое поле (компания, магазин).
func ValidateRequired(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", &errs.ValidationError{Field: field, Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(value) > userFieldMaxLen {
		return "", &errs.ValidationError{Field: field, Reason: "too long"}
	}
	return value, nil
}

// FindByChatID возвращает (nil, nil) для незарегистрированного пользователя.
func (s *UserService) FindByChatID(ctx context.Context, chatID int64) (*model.User, error) {
	return s.users.FindByExternalChatID(ctx, chatID)
}

func (s *UserService) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// Register создаёт пользователя. Если chat id уже зарегистрирован, возвращает существующего и created=false.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (u *model.User, created bool, err error) {
	if existing, err := s.users.FindByExternalChatID(ctx, in.ChatID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}
	name, err := ValidateFullName(in.FullName)
	if err != nil {
		return nil, false, err
	}
	company, err := ValidateRequired("company", in.Company)
	if err != nil {
		return nil, false, err
	}
	shop, err := ValidateRequired("shop", in.Shop)
	if err != nil {
		return nil, false, err
	}
	u = &model.User{
		ExternalChatID: in.ChatID,
		Username:       in.Username,
		DisplayName:    name,
		Company:        company,
		Shop:           shop,
		Active:         true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, false, err
	}
	s.log.Info("user registered", zap.Uint64("user_id", u.ID), zap.Int64("chat_id", in.ChatID))
	return u, true, nil
}

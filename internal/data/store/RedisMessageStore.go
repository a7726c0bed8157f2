package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mfales/ragengine/internal/adapter/utils"
	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/data/redisStore"
	"github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/pkg/logx"
)

type RedisMessageStore struct {
	store  *redisStore.Store
	logger *logx.Logger
}

func GetRedisMessageStore(ctx context.Context) *RedisMessageStore {
	return &RedisMessageStore{
		store:  redisStore.GetRedisStore(ctx, config.RedisMessageStore),
		logger: logx.NewLogger("MessageStore"),
	}
}

func (s *RedisMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "chat Id", chatId)
	isFound, err := s.store.Exists(ctx, chatId)
	if err != nil && !s.store.IsNil(err) {
		log.Error("Failed to check if chatId exists", "err", err)
		return false
	}
	return isFound
}

func (s *RedisMessageStore) TrySaveChat(ctx context.Context, id string, turn jobModel.ChatTurn) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "chat Id", id)
	if !s.ValidateChatId(ctx, id) {
		err := errors.New("invalid chat id")
		log.Error("Failed Validation before saving", "err", err)
		return err
	}
	return s.saveChatId(ctx, id, turn)
}

func (s *RedisMessageStore) saveChatId(ctx context.Context, id string, turn jobModel.ChatTurn) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "chat Id", id)
	err := s.store.ListPush(ctx, id, marshallJson(turn, s.logger))
	if err != nil {
		log.Error("error saving chat", "error:", err)
		return err
	}
	log.Debug("Saved chat successfully")
	return nil
}

func (s *RedisMessageStore) InitNewChat(ctx context.Context, id string) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "chat Id", id)
	log.Debug("Initializing new chat")
	err := s.store.Del(ctx, id)
	if err != nil && !s.store.IsNil(err) {
		log.Error("Error initializing chat", "chatId", id)
	}
	return s.saveChatId(ctx, id, jobModel.ChatTurn{})
}

func marshallJson(turn jobModel.ChatTurn, logger *logx.Logger) []byte {
	data, err := json.Marshal(turn)
	if err != nil {
		logger.Error("Error marshalling json :", "error", err)
	}
	return data
}

func (s *RedisMessageStore) GetMessageHistory(ctx context.Context, chatId string) (error, []jobModel.ChatTurn) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "chat Id", chatId)
	log.Debug("Getting message history")

	res, err := s.store.ListGet5PastMessage(ctx, chatId)
	if err != nil {
		log.Error("Error getting history", "error:", err)
		return err, nil
	}

	turns := make([]jobModel.ChatTurn, 0, len(res))
	for _, raw := range utils.ReverseStringArray(res) {
		var turn jobModel.ChatTurn
		if err := json.Unmarshal([]byte(raw), &turn); err != nil {
			log.Error("Skipping malformed chat turn", "error", err)
			continue
		}
		if turn.Question == "" && turn.Answer == "" {
			continue //the init marker
		}
		turns = append(turns, turn)
	}
	return nil, turns
}

func TestMessageStore(store *redisStore.Store) *RedisMessageStore {
	return &RedisMessageStore{
		store:  store,
		logger: logx.NewLogger("test redis"),
	}
}

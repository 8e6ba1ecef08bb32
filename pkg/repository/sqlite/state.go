package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/potenza-io/opsbot/pkg/domain/model"
	"github.com/potenza-io/opsbot/pkg/domain/types"
)

type verificationRepo struct {
	parent *Repository
}

func (r *verificationRepo) Put(ctx context.Context, code *model.VerificationCode) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	rec := &verificationRecord{
		SlackID:   string(code.SlackID),
		Email:     code.Email,
		Code:      code.Code,
		CreatedAt: code.CreatedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	err := r.parent.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slack_id"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return storageErr(err, "store verification code")
	}
	return nil
}

func (r *verificationRepo) Get(ctx context.Context, slackID model.SlackUserID) (*model.VerificationCode, error) {
	var rec verificationRecord
	err := r.parent.db.WithContext(ctx).
		Where("slack_id = ?", string(slackID)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "get verification code")
	}
	return &model.VerificationCode{
		SlackID:   model.SlackUserID(rec.SlackID),
		Email:     rec.Email,
		Code:      rec.Code,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (r *verificationRepo) VerifyAndConsume(ctx context.Context, slackID model.SlackUserID, code string) (*model.VerificationCode, model.VerifyOutcome, error) {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	var stored *model.VerificationCode
	outcome := model.VerifyNone
	err := r.parent.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec verificationRecord
		err := tx.Where("slack_id = ?", string(slackID)).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if time.Since(rec.CreatedAt) > types.VerificationCodeTTL {
			outcome = model.VerifyExpired
			return tx.Delete(&verificationRecord{}, "slack_id = ?", rec.SlackID).Error
		}
		if rec.Code != code {
			outcome = model.VerifyMismatch
			return nil
		}

		outcome = model.VerifyOK
		stored = &model.VerificationCode{
			SlackID:   model.SlackUserID(rec.SlackID),
			Email:     rec.Email,
			Code:      rec.Code,
			CreatedAt: rec.CreatedAt,
		}
		return tx.Delete(&verificationRecord{}, "slack_id = ?", rec.SlackID).Error
	})
	if err != nil {
		return nil, model.VerifyNone, storageErr(err, "verify code", goerr.V("slack_id", slackID))
	}
	return stored, outcome, nil
}

func (r *verificationRepo) Delete(ctx context.Context, slackID model.SlackUserID) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	err := r.parent.db.WithContext(ctx).
		Delete(&verificationRecord{}, "slack_id = ?", string(slackID)).Error
	if err != nil {
		return storageErr(err, "delete verification code")
	}
	return nil
}

type conversationRepo struct {
	parent *Repository
}

func (r *conversationRepo) Get(ctx context.Context, channelID string) (*model.Conversation, error) {
	var rec conversationRecord
	err := r.parent.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "get conversation", goerr.V("channel_id", channelID))
	}
	if time.Since(rec.LastUpdated) > types.ConversationTTL {
		return nil, nil
	}
	return &model.Conversation{
		ChannelID:          rec.ChannelID,
		PreviousResponseID: rec.PreviousResponseID,
		LastUpdated:        rec.LastUpdated,
	}, nil
}

func (r *conversationRepo) Put(ctx context.Context, conv *model.Conversation) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	rec := &conversationRecord{
		ChannelID:          conv.ChannelID,
		PreviousResponseID: conv.PreviousResponseID,
		LastUpdated:        conv.LastUpdated,
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now().UTC()
	}
	err := r.parent.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return storageErr(err, "store conversation", goerr.V("channel_id", conv.ChannelID))
	}
	return nil
}

func (r *conversationRepo) ResetAll(ctx context.Context) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	err := r.parent.db.WithContext(ctx).
		Where("1 = 1").Delete(&conversationRecord{}).Error
	if err != nil {
		return storageErr(err, "reset conversations")
	}
	return nil
}

type eventRepo struct {
	parent *Repository
}

func (r *eventRepo) MarkProcessed(ctx context.Context, messageTS, channelID string) (bool, error) {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	rec := &eventRecord{
		MessageTS:   messageTS,
		ChannelID:   channelID,
		ProcessedAt: time.Now().UTC(),
	}
	err := r.parent.db.WithContext(ctx).Create(rec).Error
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, storageErr(err, "mark event processed",
			goerr.V("message_ts", messageTS), goerr.V("channel_id", channelID))
	}
	return true, nil
}

func (r *eventRepo) PruneBefore(ctx context.Context, before time.Time) (int, error) {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	res := r.parent.db.WithContext(ctx).
		Where("processed_at < ?", before).
		Delete(&eventRecord{})
	if res.Error != nil {
		return 0, storageErr(res.Error, "prune processed events")
	}
	return int(res.RowsAffected), nil
}

type actAsRepo struct {
	parent *Repository
}

func (r *actAsRepo) Put(ctx context.Context, session *model.ActingAs) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	rec := &actAsRecord{
		AdminSlackID: string(session.AdminSlackID),
		UserSlackID:  string(session.UserSlackID),
		CreatedAt:    session.CreatedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	err := r.parent.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "admin_slack_id"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return storageErr(err, "store act-as session")
	}
	return nil
}

func (r *actAsRepo) Get(ctx context.Context, adminID model.SlackUserID) (*model.ActingAs, error) {
	var rec actAsRecord
	err := r.parent.db.WithContext(ctx).
		Where("admin_slack_id = ?", string(adminID)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "get act-as session")
	}
	if time.Since(rec.CreatedAt) > types.ActingAsTTL {
		return nil, nil
	}
	return &model.ActingAs{
		AdminSlackID: model.SlackUserID(rec.AdminSlackID),
		UserSlackID:  model.SlackUserID(rec.UserSlackID),
		CreatedAt:    rec.CreatedAt,
	}, nil
}

func (r *actAsRepo) Delete(ctx context.Context, adminID model.SlackUserID) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	err := r.parent.db.WithContext(ctx).
		Delete(&actAsRecord{}, "admin_slack_id = ?", string(adminID)).Error
	if err != nil {
		return storageErr(err, "delete act-as session")
	}
	return nil
}

type auditRepo struct {
	parent *Repository
}

func (r *auditRepo) Append(ctx context.Context, usage *model.ToolUsage) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	rec := &auditRecord{
		FunctionName: usage.FunctionName,
		UserEmail:    usage.UserEmail,
		SlackID:      string(usage.SlackID),
		ActorSlackID: string(usage.ActorSlackID),
		CalledAt:     usage.CalledAt,
	}
	if rec.CalledAt.IsZero() {
		rec.CalledAt = time.Now().UTC()
	}
	if err := r.parent.db.WithContext(ctx).Create(rec).Error; err != nil {
		return storageErr(err, "append tool usage")
	}
	return nil
}

func (r *auditRepo) List(ctx context.Context, limit int) ([]*model.ToolUsage, error) {
	q := r.parent.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []auditRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, storageErr(err, "list tool usage")
	}
	out := make([]*model.ToolUsage, len(recs))
	for i, rec := range recs {
		out[i] = &model.ToolUsage{
			ID:           rec.ID,
			FunctionName: rec.FunctionName,
			UserEmail:    rec.UserEmail,
			SlackID:      model.SlackUserID(rec.SlackID),
			ActorSlackID: model.SlackUserID(rec.ActorSlackID),
			CalledAt:     rec.CalledAt,
		}
	}
	return out, nil
}

package sqlite

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/potenza-io/opsbot/pkg/domain/model"
	"github.com/potenza-io/opsbot/pkg/domain/types"
)

type userRepo struct {
	parent *Repository
}

func (r *userRepo) Upsert(ctx context.Context, user *model.User) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	rec := &userRecord{
		SlackID:         string(user.SlackID),
		Email:           user.Email,
		CorporateID:     user.CorporateID,
		IsAdmin:         user.IsAdmin,
		AuthenticatedAt: user.AuthenticatedAt,
	}
	// is_admin survives re-verification; only SetAdmin changes it
	err := r.parent.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slack_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "corporate_id", "authenticated_at"}),
	}).Create(rec).Error
	if err != nil {
		if isDuplicateKey(err) {
			return goerr.Wrap(types.ErrDuplicateKey, "email already linked",
				goerr.V("email", user.Email))
		}
		return storageErr(err, "upsert user")
	}
	return nil
}

func (r *userRepo) Get(ctx context.Context, slackID model.SlackUserID) (*model.User, error) {
	var rec userRecord
	err := r.parent.db.WithContext(ctx).
		Where("slack_id = ?", string(slackID)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "get user", goerr.V("slack_id", slackID))
	}
	return rec.toModel(), nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var rec userRecord
	err := r.parent.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "get user by email")
	}
	return rec.toModel(), nil
}

func (r *userRepo) FindByEmailLike(ctx context.Context, substr string) (*model.User, error) {
	var rec userRecord
	err := r.parent.db.WithContext(ctx).
		Where("LOWER(email) LIKE '%' || LOWER(?) || '%'", substr).
		Order("slack_id").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "find user by email fragment")
	}
	return rec.toModel(), nil
}

func (r *userRepo) ListAdmins(ctx context.Context) ([]*model.User, error) {
	var recs []userRecord
	err := r.parent.db.WithContext(ctx).
		Where("is_admin = ?", true).
		Order("email").
		Find(&recs).Error
	if err != nil {
		return nil, storageErr(err, "list admins")
	}
	users := make([]*model.User, len(recs))
	for i := range recs {
		users[i] = recs[i].toModel()
	}
	return users, nil
}

func (r *userRepo) SetAdmin(ctx context.Context, slackID model.SlackUserID, isAdmin bool) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	res := r.parent.db.WithContext(ctx).
		Model(&userRecord{}).
		Where("slack_id = ?", string(slackID)).
		Update("is_admin", isAdmin)
	if res.Error != nil {
		return storageErr(res.Error, "set admin flag", goerr.V("slack_id", slackID))
	}
	if res.RowsAffected == 0 {
		return goerr.New("user not found", goerr.V("slack_id", slackID))
	}
	return nil
}

func (r *userRepo) EnsureBootstrapAdmin(ctx context.Context, corporateID int64) (bool, error) {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()

	var elevated bool
	err := r.parent.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userRecord{}).Where("is_admin = ?", true).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		res := tx.Model(&userRecord{}).
			Where("corporate_id = ?", corporateID).
			Update("is_admin", true)
		if res.Error != nil {
			return res.Error
		}
		elevated = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, storageErr(err, "bootstrap admin", goerr.V("corporate_id", corporateID))
	}
	return elevated, nil
}

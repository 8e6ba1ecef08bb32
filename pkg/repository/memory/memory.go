// Package memory provides an in-memory Repository used by tests and local
// development runs. All state is process-local and guarded by one mutex
// per sub-repository.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/potenza-io/opsbot/pkg/domain/interfaces"
	"github.com/potenza-io/opsbot/pkg/domain/model"
	"github.com/potenza-io/opsbot/pkg/domain/types"
)

type Repository struct {
	users         *userRepo
	verifications *verificationRepo
	conversations *conversationRepo
	events        *eventRepo
	actAs         *actAsRepo
	audit         *auditRepo
}

var _ interfaces.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{
		users:         &userRepo{byID: map[model.SlackUserID]*model.User{}},
		verifications: &verificationRepo{codes: map[model.SlackUserID]*model.VerificationCode{}},
		conversations: &conversationRepo{convs: map[string]*model.Conversation{}},
		events:        &eventRepo{seen: map[eventKey]time.Time{}},
		actAs:         &actAsRepo{sessions: map[model.SlackUserID]*model.ActingAs{}},
		audit:         &auditRepo{},
	}
}

func (r *Repository) User() interfaces.UserRepository                 { return r.users }
func (r *Repository) Verification() interfaces.VerificationRepository { return r.verifications }
func (r *Repository) Conversation() interfaces.ConversationRepository { return r.conversations }
func (r *Repository) Event() interfaces.EventRepository               { return r.events }
func (r *Repository) ActAs() interfaces.ActAsRepository               { return r.actAs }
func (r *Repository) Audit() interfaces.AuditRepository               { return r.audit }
func (r *Repository) Close() error                                    { return nil }

type userRepo struct {
	mu   sync.Mutex
	byID map[model.SlackUserID]*model.User
}

func (r *userRepo) Upsert(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.byID {
		if id != user.SlackID && strings.EqualFold(u.Email, user.Email) {
			return goerr.Wrap(types.ErrDuplicateKey, "email already linked",
				goerr.V("email", user.Email))
		}
	}
	cp := *user
	// is_admin survives re-verification; only SetAdmin changes it
	if prev, ok := r.byID[user.SlackID]; ok {
		cp.IsAdmin = prev.IsAdmin
	}
	r.byID[user.SlackID] = &cp
	return nil
}

func (r *userRepo) Get(_ context.Context, slackID model.SlackUserID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[slackID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *userRepo) FindByEmailLike(_ context.Context, substr string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	needle := strings.ToLower(substr)
	// deterministic order so "first match" is stable
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		u := r.byID[model.SlackUserID(id)]
		if strings.Contains(strings.ToLower(u.Email), needle) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *userRepo) ListAdmins(_ context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var admins []*model.User
	for _, u := range r.byID {
		if u.IsAdmin {
			cp := *u
			admins = append(admins, &cp)
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].Email < admins[j].Email })
	return admins, nil
}

func (r *userRepo) SetAdmin(_ context.Context, slackID model.SlackUserID, isAdmin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[slackID]
	if !ok {
		return goerr.New("user not found", goerr.V("slack_id", slackID))
	}
	u.IsAdmin = isAdmin
	return nil
}

func (r *userRepo) EnsureBootstrapAdmin(_ context.Context, corporateID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.IsAdmin {
			return false, nil
		}
	}
	for _, u := range r.byID {
		if u.CorporateID == corporateID {
			u.IsAdmin = true
			return true, nil
		}
	}
	return false, nil
}

type verificationRepo struct {
	mu    sync.Mutex
	codes map[model.SlackUserID]*model.VerificationCode
}

func (r *verificationRepo) Put(_ context.Context, code *model.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *code
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.codes[code.SlackID] = &cp
	return nil
}

func (r *verificationRepo) Get(_ context.Context, slackID model.SlackUserID) (*model.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.codes[slackID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *verificationRepo) VerifyAndConsume(_ context.Context, slackID model.SlackUserID, code string) (*model.VerificationCode, model.VerifyOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.codes[slackID]
	if !ok {
		return nil, model.VerifyNone, nil
	}
	if time.Since(stored.CreatedAt) > types.VerificationCodeTTL {
		delete(r.codes, slackID)
		return nil, model.VerifyExpired, nil
	}
	if stored.Code != code {
		return nil, model.VerifyMismatch, nil
	}
	delete(r.codes, slackID)
	cp := *stored
	return &cp, model.VerifyOK, nil
}

func (r *verificationRepo) Delete(_ context.Context, slackID model.SlackUserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.codes, slackID)
	return nil
}

type conversationRepo struct {
	mu    sync.Mutex
	convs map[string]*model.Conversation
}

func (r *conversationRepo) Get(_ context.Context, channelID string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.convs[channelID]
	if !ok {
		return nil, nil
	}
	if time.Since(c.LastUpdated) > types.ConversationTTL {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *conversationRepo) Put(_ context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *conv
	if cp.LastUpdated.IsZero() {
		cp.LastUpdated = time.Now().UTC()
	}
	r.convs[conv.ChannelID] = &cp
	return nil
}

func (r *conversationRepo) ResetAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.convs = map[string]*model.Conversation{}
	return nil
}

type eventKey struct {
	messageTS string
	channelID string
}

type eventRepo struct {
	mu   sync.Mutex
	seen map[eventKey]time.Time
}

func (r *eventRepo) MarkProcessed(_ context.Context, messageTS, channelID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := eventKey{messageTS: messageTS, channelID: channelID}
	if _, ok := r.seen[key]; ok {
		return false, nil
	}
	r.seen[key] = time.Now().UTC()
	return true, nil
}

func (r *eventRepo) PruneBefore(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pruned int
	for key, at := range r.seen {
		if at.Before(before) {
			delete(r.seen, key)
			pruned++
		}
	}
	return pruned, nil
}

type actAsRepo struct {
	mu       sync.Mutex
	sessions map[model.SlackUserID]*model.ActingAs
}

func (r *actAsRepo) Put(_ context.Context, session *model.ActingAs) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *session
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.sessions[session.AdminSlackID] = &cp
	return nil
}

func (r *actAsRepo) Get(_ context.Context, adminID model.SlackUserID) (*model.ActingAs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[adminID]
	if !ok {
		return nil, nil
	}
	if time.Since(s.CreatedAt) > types.ActingAsTTL {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *actAsRepo) Delete(_ context.Context, adminID model.SlackUserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, adminID)
	return nil
}

type auditRepo struct {
	mu      sync.Mutex
	entries []*model.ToolUsage
	nextID  int64
}

func (r *auditRepo) Append(_ context.Context, usage *model.ToolUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	cp := *usage
	cp.ID = r.nextID
	if cp.CalledAt.IsZero() {
		cp.CalledAt = time.Now().UTC()
	}
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *auditRepo) List(_ context.Context, limit int) ([]*model.ToolUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*model.ToolUsage, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		cp := *r.entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

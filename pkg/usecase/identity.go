package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/potenza-io/opsbot/pkg/domain/interfaces"
	"github.com/potenza-io/opsbot/pkg/domain/model"
	"github.com/potenza-io/opsbot/pkg/domain/types"
	"github.com/potenza-io/opsbot/pkg/service/email"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	codePattern  = regexp.MustCompile(`\b(\d{6})\b`)
)

// IdentityUseCase drives the email-code verification flow for users who
// have not linked their Slack account yet
type IdentityUseCase struct {
	repo      interfaces.Repository
	directory targetprocess.Client
	sender    email.Sender
}

func NewIdentityUseCase(repo interfaces.Repository, directory targetprocess.Client, sender email.Sender) *IdentityUseCase {
	return &IdentityUseCase{
		repo:      repo,
		directory: directory,
		sender:    sender,
	}
}

// HandleMessage advances the verification state machine for one inbound DM
// and returns the reply to post. The second return value is true when the
// message completed authentication.
func (uc *IdentityUseCase) HandleMessage(ctx context.Context, slackID model.SlackUserID, text string) (string, bool) {
	logger := logging.From(ctx)

	// a fresh email restarts the flow even when a code is pending
	if addr := emailPattern.FindString(text); addr != "" {
		reply, err := uc.startVerification(ctx, slackID, strings.ToLower(addr))
		if err != nil {
			logger.Error("failed to start verification", "slack_id", slackID, "error", err)
			return "I couldn't send a verification code right now. Please try again in a few minutes.", false
		}
		return reply, false
	}

	if m := codePattern.FindStringSubmatch(text); m != nil {
		return uc.checkCode(ctx, slackID, m[1])
	}

	pending, err := uc.repo.Verification().Get(ctx, slackID)
	if err != nil {
		logger.Error("failed to read pending verification", "slack_id", slackID, "error", err)
	}
	if pending != nil {
		return "Please enter the 6-digit code I sent to " + pending.Email + ", or send your email address again for a new code.", false
	}
	return "Hi! Before I can help you, I need to verify who you are. Please send me your corporate email address.", false
}

func (uc *IdentityUseCase) startVerification(ctx context.Context, slackID model.SlackUserID, addr string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", goerr.Wrap(err, "generate verification code")
	}

	if err := uc.repo.Verification().Put(ctx, &model.VerificationCode{
		SlackID: slackID,
		Email:   addr,
		Code:    code,
	}); err != nil {
		return "", goerr.Wrap(err, "store verification code")
	}

	subject := "Your verification code"
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(types.VerificationCodeTTL.Minutes()))
	if err := uc.sender.Send(ctx, addr, subject, body); err != nil {
		// do not leave a code the user can never learn
		if delErr := uc.repo.Verification().Delete(ctx, slackID); delErr != nil {
			logging.From(ctx).Error("failed to clear undeliverable code", "slack_id", slackID, "error", delErr)
		}
		return "", goerr.Wrap(err, "send verification email", goerr.V("email", addr))
	}

	return "I've sent a verification code to " + addr + ". Please enter the 6-digit code to complete verification.", nil
}

func (uc *IdentityUseCase) checkCode(ctx context.Context, slackID model.SlackUserID, digits string) (string, bool) {
	logger := logging.From(ctx)

	stored, outcome, err := uc.repo.Verification().VerifyAndConsume(ctx, slackID, digits)
	if err != nil {
		logger.Error("verification lookup failed", "slack_id", slackID, "error", err)
		return "Something went wrong checking your code. Please try again.", false
	}

	switch outcome {
	case model.VerifyNone:
		return "I don't have a pending verification for you. Please send me your corporate email address first.", false
	case model.VerifyExpired:
		return "That code has expired. Please send me your email address again and I'll issue a new one.", false
	case model.VerifyMismatch:
		return "That code doesn't match. Please check the email and try again.", false
	}

	corporateID, reason := uc.bindCorporateID(ctx, stored.Email)
	if reason != "" {
		// the code is already consumed; the user restarts from the email step
		return reason, false
	}

	user := &model.User{
		SlackID:         slackID,
		Email:           stored.Email,
		CorporateID:     corporateID,
		AuthenticatedAt: time.Now().UTC(),
	}
	if err := uc.repo.User().Upsert(ctx, user); err != nil {
		if errors.Is(err, types.ErrDuplicateKey) {
			return "That email address is already linked to a different Slack account. Please contact an administrator.", false
		}
		logger.Error("failed to store authenticated user", "slack_id", slackID, "error", err)
		return "Something went wrong completing your verification. Please try again.", false
	}

	logger.Info("user authenticated", "slack_id", slackID, "email", stored.Email, "corporate_id", corporateID)
	return "Thank you! You've been successfully authenticated as " + stored.Email + ". How can I help you today?", true
}

// bindCorporateID resolves the directory record for an email by searching on
// the local part. It returns a user-facing reason string when binding fails.
func (uc *IdentityUseCase) bindCorporateID(ctx context.Context, addr string) (int64, string) {
	localPart := addr
	if at := strings.Index(addr, "@"); at > 0 {
		localPart = addr[:at]
	}

	records, err := uc.directory.FindUsersByEmailLocalPart(ctx, localPart)
	if err != nil {
		logging.From(ctx).Error("directory lookup failed", "email", addr, "error", err)
		return 0, "Your code was correct, but I couldn't reach the user directory to finish linking your account. Please send your email address again later."
	}
	if len(records) == 0 {
		return 0, "Your code was correct, but I couldn't find " + addr + " in the user directory. Please send your email address again or contact an administrator."
	}

	record := records[0]
	if record.ID <= 0 {
		return 0, "Your code was correct, but the directory record for " + addr + " has no usable id. Please contact an administrator."
	}
	return record.ID, ""
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

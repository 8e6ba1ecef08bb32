package usecase_test

import (
	"context"

	"github.com/potenza-io/opsbot/pkg/service/llm"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
)

// fakeDirectory implements the Targetprocess client with per-call hooks.
// Unset hooks fail loudly rather than returning zero values silently.
type fakeDirectory struct {
	postTime    func(ctx context.Context, req *targetprocess.PostTimeRequest) error
	listTimes   func(ctx context.Context, userID, storyID int64) ([]targetprocess.TimeEntry, error)
	deleteTime  func(ctx context.Context, id int64) error
	updateTime  func(ctx context.Context, id int64, date *string, spent *float64) error
	findByEmail func(ctx context.Context, localPart string) ([]targetprocess.User, error)
	findByName  func(ctx context.Context, firstName, lastName string) ([]targetprocess.User, error)
	restart     func(ctx context.Context) error
}

func (f *fakeDirectory) PostTime(ctx context.Context, req *targetprocess.PostTimeRequest) error {
	return f.postTime(ctx, req)
}

func (f *fakeDirectory) ListTimes(ctx context.Context, userID, storyID int64) ([]targetprocess.TimeEntry, error) {
	return f.listTimes(ctx, userID, storyID)
}

func (f *fakeDirectory) DeleteTime(ctx context.Context, id int64) error {
	return f.deleteTime(ctx, id)
}

func (f *fakeDirectory) UpdateTime(ctx context.Context, id int64, date *string, spent *float64) error {
	return f.updateTime(ctx, id, date, spent)
}

func (f *fakeDirectory) FindUsersByEmailLocalPart(ctx context.Context, localPart string) ([]targetprocess.User, error) {
	return f.findByEmail(ctx, localPart)
}

func (f *fakeDirectory) FindUsersByName(ctx context.Context, firstName, lastName string) ([]targetprocess.User, error) {
	return f.findByName(ctx, firstName, lastName)
}

func (f *fakeDirectory) RestartService(ctx context.Context) error {
	return f.restart(ctx)
}

// recordingSender captures outbound verification mail
type recordingSender struct {
	failWith error
	sent     []sentMail
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

// scriptedLLM returns canned responses in order and records every request
type scriptedLLM struct {
	responses []*llm.Response
	errs      []error
	requests  []*llm.Request
}

func (s *scriptedLLM) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return &llm.Response{ID: "resp_overflow"}, nil
	}
	return s.responses[i], nil
}

func textResponse(id, text string) *llm.Response {
	return &llm.Response{
		ID: id,
		Output: []llm.OutputItem{{
			Type:    "message",
			Role:    "assistant",
			Content: []llm.ContentPart{{Type: "output_text", Text: text}},
		}},
	}
}

func callResponse(id, name, callID, arguments string) *llm.Response {
	return &llm.Response{
		ID: id,
		Output: []llm.OutputItem{{
			Type:      "function_call",
			Name:      name,
			CallID:    callID,
			Arguments: arguments,
		}},
	}
}

// recordingSlack captures posted messages and in-place updates
type recordingSlack struct {
	messages []postedMessage
	updates  []postedMessage
}

type postedMessage struct {
	channelID string
	messageTS string
	text      string
}

func (s *recordingSlack) PostMessage(_ context.Context, channelID, text string) (string, error) {
	s.messages = append(s.messages, postedMessage{channelID: channelID, text: text})
	return "1700000000.000001", nil
}

func (s *recordingSlack) UpdateMessage(_ context.Context, channelID, messageTS, text string) error {
	s.updates = append(s.updates, postedMessage{channelID: channelID, messageTS: messageTS, text: text})
	return nil
}

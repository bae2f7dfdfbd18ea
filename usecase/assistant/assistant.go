// Package assistant turns inbound chat messages into task actions and renders replies.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/keylock"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/usecase"
	"github.com/fastygo/taskpilot/usecase/clarify"
	"github.com/fastygo/taskpilot/usecase/task"
)

const (
	CommandStart = "/start"
	CommandTasks = "/tasks"
)

// Option is one selectable answer to a clarification question.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
	// Data is the opaque callback payload for chat buttons.
	Data string `json:"data"`
}

// Reply is what the user sees in response to a message or a choice.
type Reply struct {
	Text        string       `json:"text"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Options     []Option     `json:"options,omitempty"`
	Result      *task.Result `json:"result,omitempty"`
}

type Config struct {
	Location *time.Location
}

// UseCase serializes work per user and routes each message to clarification, the parser
// or the applier.
type UseCase struct {
	tasks    *task.UseCase
	resolver *clarify.Resolver
	pending  repository.ClarificationRepository
	parser   usecase.Parser
	users    keylock.Map
	cfg      Config
	logger   *zap.Logger
}

func New(
	tasks *task.UseCase,
	resolver *clarify.Resolver,
	pending repository.ClarificationRepository,
	parser usecase.Parser,
	cfg Config,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &UseCase{
		tasks:    tasks,
		resolver: resolver,
		pending:  pending,
		parser:   parser,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleMessage processes one free-text message from userID. Internal faults are logged
// and answered with a generic reply; only invalid input is returned as an error.
func (uc *UseCase) HandleMessage(ctx context.Context, userID, text string) (*Reply, error) {
	userID = strings.TrimSpace(userID)
	text = strings.TrimSpace(text)
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if text == "" {
		return nil, domain.ErrInvalidPayload
	}

	unlock := uc.users.Lock(userID)
	defer unlock()

	log := uc.logger.With(zap.String("user_id", userID))
	log.Info("message received", zap.Int("length", len(text)))

	switch strings.ToLower(text) {
	case CommandStart:
		return &Reply{Text: welcomeText}, nil
	case CommandTasks:
		return uc.apply(ctx, log, userID, &domain.Action{Query: domain.QueryListTasks})
	}

	if uc.resolver.NeedsClarification(text) {
		return uc.askForTime(ctx, log, userID, text)
	}

	pending, err := uc.tasks.ListPending(ctx, userID)
	if err != nil {
		log.Error("list pending failed", zap.Error(err))
		return &Reply{Text: genericError}, nil
	}

	action, err := uc.parser.Parse(ctx, text, domain.Refs(pending))
	if err != nil {
		log.Error("parse failed", zap.Error(err))
		return &Reply{Text: genericError}, nil
	}
	if action == nil {
		action = &domain.Action{}
	}
	if action.WantsClarification() {
		return uc.askForTime(ctx, log, userID, text)
	}
	return uc.apply(ctx, log, userID, action)
}

// HandleTimeChoice completes a pending clarification with a "HH:MM" choice.
func (uc *UseCase) HandleTimeChoice(ctx context.Context, userID, fingerprint, chosen string) (*Reply, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(fingerprint) == "" {
		return nil, domain.ErrInvalidPayload
	}
	at, err := uc.resolver.At(chosen)
	if err != nil {
		return nil, err
	}

	unlock := uc.users.Lock(userID)
	defer unlock()

	log := uc.logger.With(zap.String("user_id", userID), zap.String("fingerprint", fingerprint))
	key := pendingKey(userID, fingerprint)

	original, err := uc.pending.Take(ctx, key)
	if errors.Is(err, domain.ErrClarificationNotFound) {
		log.Info("clarification expired or unknown")
		return &Reply{Text: lostTrackText}, nil
	}
	if err != nil {
		log.Error("clarification lookup failed", zap.Error(err))
		return &Reply{Text: genericError}, nil
	}

	req, err := uc.resolver.ResolveWithTime(original, chosen)
	if err != nil {
		uc.restore(ctx, log, key, original)
		return nil, err
	}

	res, err := uc.tasks.Create(ctx, userID, req)
	if err != nil || len(res.Tasks) == 0 {
		log.Error("task from clarification not created", zap.Error(err))
		uc.restore(ctx, log, key, original)
		return &Reply{Text: createFailed}, nil
	}

	log.Info("task created from clarification", zap.String("task_id", res.Tasks[0].ID))
	return &Reply{Text: createdText(req.Title, at), Result: res}, nil
}

// HandleCallback accepts the opaque payload carried by a clarification option.
func (uc *UseCase) HandleCallback(ctx context.Context, userID, data string) (*Reply, error) {
	value, fingerprint, err := clarify.DecodeChoice(data)
	if err != nil {
		return nil, err
	}
	return uc.HandleTimeChoice(ctx, userID, fingerprint, value)
}

func (uc *UseCase) askForTime(ctx context.Context, log *zap.Logger, userID, text string) (*Reply, error) {
	fp := clarify.Fingerprint(text)
	if err := uc.pending.Put(ctx, pendingKey(userID, fp), text); err != nil {
		log.Error("store clarification failed", zap.Error(err))
		return &Reply{Text: genericError}, nil
	}

	slots := uc.resolver.TimeSlots()
	options := make([]Option, 0, len(slots))
	for _, s := range slots {
		options = append(options, Option{Label: s.Label, Value: s.Value, Data: clarify.EncodeChoice(s.Value, fp)})
	}

	log.Info("asked for time clarification", zap.String("fingerprint", fp))
	return &Reply{
		Text:        questionText(uc.resolver.Preview(text)),
		Fingerprint: fp,
		Options:     options,
	}, nil
}

func (uc *UseCase) apply(ctx context.Context, log *zap.Logger, userID string, action *domain.Action) (*Reply, error) {
	res, err := uc.tasks.Apply(ctx, userID, action)
	if err != nil {
		log.Error("apply action failed", zap.Error(err))
		return &Reply{Text: genericError}, nil
	}

	switch res.Kind {
	case task.ResultCompleted:
		return &Reply{Text: RenderList(res.Pending, res.Titles, uc.cfg.Location), Result: res}, nil
	case task.ResultAlreadyCompleted:
		text := alreadyCompletedText(res.Titles[0]) + "\n\n" + RenderList(res.Pending, nil, uc.cfg.Location)
		return &Reply{Text: text, Result: res}, nil
	case task.ResultCreated, task.ResultUpdated, task.ResultListed:
		return &Reply{Text: RenderList(res.Pending, nil, uc.cfg.Location), Result: res}, nil
	}

	if resp := strings.TrimSpace(action.Response); resp != "" {
		return &Reply{Text: resp}, nil
	}
	return &Reply{Text: unknownText}, nil
}

func (uc *UseCase) restore(ctx context.Context, log *zap.Logger, key, text string) {
	if err := uc.pending.Put(ctx, key, text); err != nil {
		log.Warn("clarification not restored", zap.Error(err))
	}
}

// pendingKey scopes fingerprints per user so equal texts from two users never collide.
func pendingKey(userID, fingerprint string) string {
	return userID + ":" + fingerprint
}

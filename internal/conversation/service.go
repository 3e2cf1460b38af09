// ABOUTME: Conversation service runs chat turns against live model sessions
// ABOUTME: Streams split visible/reasoning events to a sink and records the bot answer

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"

	"github.com/Beykus-Y/beykusaysite/internal/metrics"
	"github.com/Beykus-Y/beykusaysite/internal/provider"
	"github.com/Beykus-Y/beykusaysite/internal/session"
	"github.com/Beykus-Y/beykusaysite/internal/store"
	"github.com/Beykus-Y/beykusaysite/internal/thinktag"
)

var (
	// ErrValidation is returned for requests rejected before any work is done.
	ErrValidation = errors.New("validation failed")

	// ErrStream is returned when the provider fails, blocks or stalls mid-turn.
	ErrStream = errors.New("stream failed")

	// ErrChatNotFound is returned when a chat does not exist or belongs to
	// another user.
	ErrChatNotFound = errors.New("chat not found")
)

// MaxTitleLength is the number of characters kept from a chat title.
const MaxTitleLength = 100

// persistTimeout bounds storing the answer once the client may be gone.
const persistTimeout = 5 * time.Second

// ChatStore defines what the service needs from storage
type ChatStore interface {
	CreateChat(ctx context.Context, chat *store.Chat) error
	GetChat(ctx context.Context, id int64) (*store.Chat, error)
	ListChats(ctx context.Context, userID int64) ([]*store.ChatSummary, error)
	AppendMessage(ctx context.Context, msg *store.Message) error
	ListMessages(ctx context.Context, chatID int64) ([]*store.Message, error)
}

// EventSink receives the events of a turn in order. Emit blocks until the
// event is delivered; an error means the client is gone and ends the turn.
type EventSink interface {
	Emit(ctx context.Context, ev thinktag.Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, ev thinktag.Event) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, ev thinktag.Event) error {
	return f(ctx, ev)
}

// Observer is told how turns end. *metrics.Metrics implements it.
type Observer interface {
	TurnFinished(outcome string, d time.Duration)
	SessionsEvicted(n int)
	PersistFailed()
}

type nopObserver struct{}

func (nopObserver) TurnFinished(string, time.Duration) {}
func (nopObserver) SessionsEvicted(int)                {}
func (nopObserver) PersistFailed()                     {}

// Config tunes the service.
type Config struct {
	// DefaultModel is used for chats that have no session yet.
	DefaultModel provider.Model
	// IdleTimeout is how long a session may go unused before a sweep drops it.
	IdleTimeout time.Duration
	// FragmentTimeout bounds the wait for each fragment. Zero means no bound.
	FragmentTimeout time.Duration
	// Markers delimit reasoning in the model output.
	Markers thinktag.Markers
	// Observer is optional.
	Observer Observer
}

// Service runs turns and the chat operations around them.
type Service struct {
	store    ChatStore
	sessions *session.Registry
	cfg      Config
	observer Observer
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a new conversation Service
func New(chats ChatStore, sessions *session.Registry, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = provider.DefaultModel
	}
	if cfg.Markers == (thinktag.Markers{}) {
		cfg.Markers = thinktag.DefaultMarkers
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{
		store:    chats,
		sessions: sessions,
		cfg:      cfg,
		observer: observer,
		validate: newValidator(),
		logger:   logger.With("component", "conversation"),
		now:      time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// TurnRequest is one user message to answer.
type TurnRequest struct {
	ChatID   int64  `validate:"gt=0"`
	AuthorID int64  `validate:"gt=0"`
	Content  string `validate:"required,notblank,max=4096"`
}

// Turn sends the request content to the chat's session and streams the
// reply to sink as visible text, reasoning blocks and finally Done.
//
// Validation failures return ErrValidation before anything is emitted.
// Session and provider failures are reported to sink as one Error event and
// also returned. If ctx ends or sink fails the turn stops without further
// events and nothing is stored. The answer is stored only when the stream
// completed and its visible text is not blank.
func (s *Service) Turn(ctx context.Context, req TurnRequest, sink EventSink) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	start := s.now()
	logger := s.logger.With("turn_id", uuid.New().String(), "chat_id", req.ChatID)
	outcome := metrics.OutcomeCancelled
	defer func() {
		s.observer.TurnFinished(outcome, s.now().Sub(start))
		if n := s.sessions.Sweep(s.now(), s.cfg.IdleTimeout); n > 0 {
			s.observer.SessionsEvicted(n)
		}
		logger.Debug("turn finished", "outcome", outcome, "duration", s.now().Sub(start))
	}()

	sess, err := s.sessions.GetOrCreate(ctx, req.ChatID, s.cfg.DefaultModel)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome = metrics.OutcomeSessionUnavailable
		return s.fail(ctx, logger, sink, fmt.Sprintf("failed to initialize the model: %v", err), err)
	}

	release, err := sess.BeginTurn(ctx)
	if err != nil {
		return err
	}
	defer release()

	logger = logger.With("model", sess.Model())
	logger.Debug("turn started", "length", utf8.RuneCountInString(req.Content))

	stream, err := sess.Send(ctx, req.Content)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome = metrics.OutcomeStreamError
		return s.fail(ctx, logger, sink, err.Error(), fmt.Errorf("%w: %w", ErrStream, err))
	}
	defer stream.Close()

	splitter := thinktag.New(s.cfg.Markers)
	for {
		frag, err := s.next(ctx, stream)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("client went away mid-stream")
				return ctx.Err()
			}
			outcome = metrics.OutcomeStreamError
			msg := err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				msg = "upstream provider timed out"
			}
			return s.fail(ctx, logger, sink, msg, fmt.Errorf("%w: %w", ErrStream, err))
		}

		if err := emitAll(ctx, sink, splitter.Feed(frag)); err != nil {
			logger.Debug("sink rejected event", "error", err)
			return err
		}
		if splitter.Failed() {
			outcome = metrics.OutcomeStreamError
			logger.Warn("provider reported an error", "error", frag.Text)
			return fmt.Errorf("%w: %s", ErrStream, frag.Text)
		}
	}

	if err := emitAll(ctx, sink, splitter.Finish()); err != nil {
		return err
	}

	result := splitter.Result()
	result.Visible = strings.TrimSpace(result.Visible)
	var messageID int64
	if result.Visible == "" {
		outcome = metrics.OutcomeEmpty
		logger.Info("reply had no visible text, not stored")
	} else {
		outcome = metrics.OutcomeAnswered
		messageID = s.persist(logger, req, result)
	}

	return sink.Emit(ctx, thinktag.Done(messageID))
}

// next waits for one fragment, bounded by the fragment timeout.
func (s *Service) next(ctx context.Context, stream provider.Stream) (provider.Fragment, error) {
	if s.cfg.FragmentTimeout <= 0 {
		return stream.Next(ctx)
	}
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FragmentTimeout)
	defer cancel()
	return stream.Next(fctx)
}

// fail reports msg to the client and returns cause.
func (s *Service) fail(ctx context.Context, logger *slog.Logger, sink EventSink, msg string, cause error) error {
	logger.Warn("turn failed", "error", cause)
	if err := sink.Emit(ctx, thinktag.Error(msg)); err != nil {
		return err
	}
	return cause
}

// persist stores the trimmed bot answer with a separate timeout context, so it is
// kept even if the request context is cancelled after the last fragment.
// Returns 0 when the answer could not be stored.
func (s *Service) persist(logger *slog.Logger, req TurnRequest, result thinktag.Result) int64 {
	saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	msg := &store.Message{
		ChatID:  req.ChatID,
		UserID:  req.AuthorID,
		Content: result.Visible,
		IsBot:   true,
	}
	if strings.TrimSpace(result.Reasoning) != "" {
		reasoning := result.Reasoning
		msg.Thoughts = &reasoning
	}
	if err := s.store.AppendMessage(saveCtx, msg); err != nil {
		s.observer.PersistFailed()
		logger.Error("failed to save answer", "error", err)
		return 0
	}
	logger.Debug("answer saved", "message_id", msg.ID, "has_thoughts", msg.Thoughts != nil)
	return msg.ID
}

func emitAll(ctx context.Context, sink EventSink, events []thinktag.Event) error {
	for _, ev := range events {
		if err := sink.Emit(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

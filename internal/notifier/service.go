// Package notifier delivers reminder messages to the user's Telegram chat.
//
// It is send-only: the daemon never polls for updates. Messages go through
// a bounded queue, one worker and a rate limiter, so a burst of reminders
// cannot trip Telegram's flood control.
package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "studyplan/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
)

type Config struct {
	Enabled    bool
	Token      string
	ChatID     int64
	RatePerSec int
}

// Sender is the outbound message port. The reminder service depends on
// this interface so tests can capture messages without a bot.
type Sender interface {
	Send(text string) error
}

type Service struct {
	log logx.Logger
	cfg Config

	bot     *tele.Bot
	limiter *rate.Limiter

	queue  chan string
	stopMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:   log,
		cfg:   cfg,
		queue: make(chan string, 64),
	}
	if !cfg.Enabled {
		return s, nil
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	s.bot = bot
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	return s, nil
}

func (s *Service) Enabled() bool { return s.cfg.Enabled && s.bot != nil }

func (s *Service) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.cancel != nil {
		return
	}
	rctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(rctx)
	}()
	s.log.Info("notifier started", logx.Int64("chat_id", s.cfg.ChatID))
}

func (s *Service) Stop() {
	s.stopMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.stopMu.Unlock()
	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

// Send enqueues a message. It never blocks the caller; when the queue is
// full the message is dropped with an error so the caller can log it.
func (s *Service) Send(text string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	select {
	case s.queue <- text:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			_, err := s.bot.Send(tele.ChatID(s.cfg.ChatID), msg, tele.ModeHTML)
			if err != nil {
				s.log.Warn("reminder send failed", logx.Err(err))
				// one retry after a short pause; Telegram hiccups are common
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
				}
				if _, err := s.bot.Send(tele.ChatID(s.cfg.ChatID), msg, tele.ModeHTML); err != nil {
					s.log.Error("reminder send failed after retry", logx.Err(err))
				}
			}
		}
	}
}

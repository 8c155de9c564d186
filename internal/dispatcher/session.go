package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ChatSession is one logged-in chat UI a worker drives. Implementations are
// not safe for concurrent use; each worker owns its own.
type ChatSession interface {
	Ensure(ctx context.Context) error
	SendMessages(ctx context.Context, creatorID, region string, parts []string) error
	ExtractWhatsapp(ctx context.Context) (string, error)
	ReturnHome(ctx context.Context, region string) error
	Close()
}

// SessionError marks the browser session as unusable. The worker pool closes
// and rebuilds the session before the next task.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string { return fmt.Sprintf("chat session %s: %v", e.Op, e.Err) }
func (e *SessionError) Unwrap() error { return e.Err }

type SessionConfig struct {
	AccountName      string
	Headless         bool
	HomePath         string
	UserDataDir      string
	InputWaitTimeout time.Duration
}

// BrowserSession drives the partner chat UI through a dedicated Chrome
// instance. One exec allocator per session keeps account profiles isolated.
type BrowserSession struct {
	cfg    SessionConfig
	logger *slog.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

func NewBrowserSession(cfg SessionConfig, logger *slog.Logger) *BrowserSession {
	if cfg.HomePath == "" {
		cfg.HomePath = "/home"
	}
	if cfg.InputWaitTimeout <= 0 {
		cfg.InputWaitTimeout = 150 * time.Second
	}
	return &BrowserSession{
		cfg:    cfg,
		logger: logger.With("account_name", cfg.AccountName),
	}
}

// Ensure starts the browser and opens a tab if none is live.
func (s *BrowserSession) Ensure(ctx context.Context) error {
	if s.tabCtx != nil && s.tabCtx.Err() == nil {
		return nil
	}

	if s.allocCtx == nil || s.allocCtx.Err() != nil {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", s.cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.WindowSize(1400, 900),
		)
		if s.cfg.UserDataDir != "" {
			profile := filepath.Join(s.cfg.UserDataDir, s.cfg.AccountName)
			opts = append(opts, chromedp.UserDataDir(profile))
		}
		s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	if err := s.freshTab(); err != nil {
		s.Close()
		return &SessionError{Op: "start", Err: err}
	}

	s.logger.Info("Chat browser session ready", "headless", s.cfg.Headless)
	return nil
}

// freshTab replaces the current tab. Crashed or wedged pages keep their
// browser process; only the tab is rebuilt.
func (s *BrowserSession) freshTab() error {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	s.tabCtx, s.tabCancel = chromedp.NewContext(s.allocCtx)

	ctx, cancel := context.WithTimeout(s.tabCtx, 30*time.Second)
	defer cancel()
	return chromedp.Run(ctx, network.Enable())
}

func baseDomainForRegion(region string) string {
	if strings.ToUpper(region) == "FR" {
		return "partner.eu.tiktokshop.com"
	}
	return "partner.tiktokshop.com"
}

func marketForRegion(region string) string {
	if strings.ToUpper(region) == "FR" {
		return "17"
	}
	return "19"
}

func chatURL(creatorID, region string) string {
	return fmt.Sprintf(
		"https://%s/partner/im?creator_id=%s&market=%s&enter_from=find_creator_detail",
		baseDomainForRegion(region), creatorID, marketForRegion(region),
	)
}

func (s *BrowserSession) homeURL(region string) string {
	path := s.cfg.HomePath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("https://%s%s", baseDomainForRegion(region), path)
}

// navigateToChat opens the conversation with the creator, replacing the tab
// between attempts since a failed navigation often leaves the page wedged.
func (s *BrowserSession) navigateToChat(creatorID, region string) error {
	url := chatURL(creatorID, region)
	s.logger.Info("Navigate to chat page", "creator_id", creatorID, "region", region)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			if err := s.freshTab(); err != nil {
				return &SessionError{Op: "reopen tab", Err: err}
			}
			time.Sleep(time.Second)
		}

		ctx, cancel := context.WithTimeout(s.tabCtx, 90*time.Second)
		err := chromedp.Run(ctx,
			chromedp.Navigate(url),
			chromedp.Sleep(2*time.Second),
		)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Warn("Chat page navigation failed", "attempt", attempt, "creator_id", creatorID, "error", err)
	}

	if s.tabCtx.Err() != nil {
		return &SessionError{Op: "navigate", Err: lastErr}
	}
	return fmt.Errorf("failed to open chat page for creator %s: %v", creatorID, lastErr)
}

// SendMessages delivers each part in order. A part counts as sent when the
// merchant-side message count grows past its pre-send baseline; a cleared
// input box is accepted as a weak success since the UI sometimes lags the
// message list.
func (s *BrowserSession) SendMessages(ctx context.Context, creatorID, region string, parts []string) error {
	if err := s.navigateToChat(creatorID, region); err != nil {
		return err
	}

	inputWaited := false
	for idx, part := range parts {
		sent := false
		for attempt := 1; attempt <= 3 && !sent; attempt++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			baseline := s.countMerchantMessages()

			if !s.fillChatInput(part) {
				s.logger.Warn("Chat input not ready", "attempt", attempt, "creator_id", creatorID)
				if inputWaited {
					return nil
				}
				inputWaited = true
				if s.waitForChatInput(ctx) {
					continue
				}
				s.logger.Warn("Chat input unavailable; skipping remaining messages",
					"creator_id", creatorID, "waited", s.cfg.InputWaitTimeout)
				return nil
			}

			s.clickSendButtonIfPresent()
			sent = s.verifyMessageSent(baseline)

			if !sent && s.chatInputCleared() {
				s.logger.Info("Message likely sent (input cleared)", "creator_id", creatorID, "order", idx+1)
				sent = true
			}
			if !sent {
				s.pressEnter()
				sent = s.verifyMessageSent(baseline)
			}

			if sent {
				s.logger.Info("Chat message sent", "creator_id", creatorID, "region", region, "order", idx+1)
			} else {
				s.logger.Warn("Message verification failed, retrying",
					"attempt", attempt, "order", idx+1, "creator_id", creatorID)
				time.Sleep(1500 * time.Millisecond)
			}
		}
		if !sent {
			if s.tabCtx.Err() != nil {
				return &SessionError{Op: "send", Err: fmt.Errorf("tab closed while sending")}
			}
			return fmt.Errorf("failed to send message %d to creator %s", idx+1, creatorID)
		}
	}
	return nil
}

// ExtractWhatsapp opens the creator's contact dialog in the chat sidebar and
// scans it for a WhatsApp number. Everything here is best-effort; a missing
// dialog just yields an empty result.
func (s *BrowserSession) ExtractWhatsapp(ctx context.Context) (string, error) {
	tctx, cancel := context.WithTimeout(s.tabCtx, 15*time.Second)
	defer cancel()

	var opened bool
	err := chromedp.Run(tctx,
		chromedp.Evaluate(openContactDialogJS, &opened),
		chromedp.Sleep(time.Second),
	)
	if err != nil || !opened {
		s.logger.Info("Contact info dialog not available")
		return "", nil
	}

	var whatsapp string
	err = chromedp.Run(tctx,
		chromedp.Evaluate(extractWhatsappJS, &whatsapp),
		chromedp.KeyEvent(kb.Escape),
	)
	if err != nil {
		s.logger.Info("Contact info extraction failed", "error", err)
		return "", nil
	}
	return strings.TrimSpace(whatsapp), nil
}

// ReturnHome parks the resident tab on the home page between tasks.
func (s *BrowserSession) ReturnHome(ctx context.Context, region string) error {
	if s.tabCtx == nil || s.tabCtx.Err() != nil {
		return nil
	}
	tctx, cancel := context.WithTimeout(s.tabCtx, 60*time.Second)
	defer cancel()
	return chromedp.Run(tctx,
		chromedp.Navigate(s.homeURL(region)),
		chromedp.Sleep(800*time.Millisecond),
	)
}

func (s *BrowserSession) Close() {
	if s.tabCancel != nil {
		s.tabCancel()
		s.tabCtx, s.tabCancel = nil, nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCtx, s.allocCancel = nil, nil
	}
}

func (s *BrowserSession) countMerchantMessages() int {
	tctx, cancel := context.WithTimeout(s.tabCtx, 5*time.Second)
	defer cancel()

	var count int
	if err := chromedp.Run(tctx, chromedp.Evaluate(countMerchantMessagesJS, &count)); err != nil {
		return 0
	}
	return count
}

func (s *BrowserSession) fillChatInput(text string) bool {
	tctx, cancel := context.WithTimeout(s.tabCtx, 10*time.Second)
	defer cancel()

	var filled bool
	err := chromedp.Run(tctx,
		chromedp.Evaluate(jsCall(fillChatInputJS, text), &filled),
		chromedp.Sleep(200*time.Millisecond),
	)
	if err != nil || !filled {
		return false
	}
	s.pressEnter()
	return true
}

func (s *BrowserSession) pressEnter() {
	tctx, cancel := context.WithTimeout(s.tabCtx, 5*time.Second)
	defer cancel()
	_ = chromedp.Run(tctx, chromedp.KeyEvent(kb.Enter))
}

func (s *BrowserSession) clickSendButtonIfPresent() {
	tctx, cancel := context.WithTimeout(s.tabCtx, 5*time.Second)
	defer cancel()
	var clicked bool
	_ = chromedp.Run(tctx, chromedp.Evaluate(clickSendButtonJS, &clicked))
}

// verifyMessageSent polls the merchant-side message count for up to 8 seconds.
func (s *BrowserSession) verifyMessageSent(baseline int) bool {
	for i := 0; i < 8; i++ {
		if s.countMerchantMessages() > baseline {
			return true
		}
		if s.tabCtx.Err() != nil {
			return false
		}
		time.Sleep(time.Second)
	}
	return false
}

func (s *BrowserSession) chatInputCleared() bool {
	tctx, cancel := context.WithTimeout(s.tabCtx, 5*time.Second)
	defer cancel()

	var cleared bool
	if err := chromedp.Run(tctx, chromedp.Evaluate(chatInputClearedJS, &cleared)); err != nil {
		return false
	}
	return cleared
}

// waitForChatInput gives a freshly loaded conversation time to render its
// input box. Some chats take minutes when the counterpart has never replied.
func (s *BrowserSession) waitForChatInput(ctx context.Context) bool {
	deadline := time.Now().Add(s.cfg.InputWaitTimeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil || s.tabCtx.Err() != nil {
			return false
		}

		tctx, cancel := context.WithTimeout(s.tabCtx, 5*time.Second)
		var visible bool
		err := chromedp.Run(tctx, chromedp.Evaluate(chatInputVisibleJS, &visible))
		cancel()
		if err == nil && visible {
			return true
		}
		time.Sleep(2 * time.Second)
	}
	return false
}

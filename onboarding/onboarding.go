// Package onboarding runs the chat conversation that collects a new
// client's profile: email, target industry, target location and campaign
// parameters. A completed conversation creates the tenant through a
// ProfileSink.
//
// Each sender has one session. The conversation is a small state machine:
//
//	Email → Industry → Location → CampaignParams → Done
//
// "/start" (re)starts it from any state and "/cancel" moves an active
// session to Cancelled. Invalid answers re-prompt in the same state.
package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hazyhaar/prospect/prospect"
	"github.com/hazyhaar/prospect/channels"
)

// ErrInvalidCampaignParameters is returned when the campaign parameters
// answer is not a JSON object.
var ErrInvalidCampaignParameters = errors.New("onboarding: campaign parameters must be a JSON object")

// State is a conversation step.
type State int

const (
	StateIdle State = iota // no conversation yet
	StateEmail
	StateIndustry
	StateLocation
	StateCampaignParams
	StateDone
	StateCancelled
)

var stateNames = [...]string{"idle", "email", "industry", "location", "campaign_params", "done", "cancelled"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Active reports whether the conversation is waiting for an answer.
func (s State) Active() bool {
	return s >= StateEmail && s <= StateCampaignParams
}

// ProfileSink stores a completed profile. It reports false when the tenant
// already exists.
type ProfileSink interface {
	CreateClient(ctx context.Context, p *prospect.ClientProfile) (bool, error)
}

// User identifies the person on the other side of the chat.
type User struct {
	ID       string
	Username string
}

// TenantID derives the tenant id: the username when set, else the user id.
func TenantID(username, userID string) string {
	if username != "" {
		return username
	}
	return userID
}

// DisplayName is how the bot addresses the user.
func DisplayName(username, userID string) string {
	if username != "" {
		return "@" + username
	}
	return "User " + userID
}

// Replies sent by the bot.
const (
	msgWelcome       = "Welcome to %s, %s!\nLet's get you set up.\n\nPlease provide your email address."
	msgInvalidEmail  = "That doesn't look like a valid email address. Please try again."
	msgIndustry      = "What industry are you targeting?"
	msgLocation      = "What's your target location/region?"
	msgEmptyAnswer   = "Please send a non-empty answer."
	msgParamsFormat  = "{\n    \"iteration_count\": number,\n    \"search_depth\": number,\n    \"lead_quantity\": number\n}"
	msgCampaign      = "Finally, let's set up your campaign parameters.\nPlease provide the following in JSON format:\n" + msgParamsFormat
	msgInvalidParams = "Invalid JSON format. Please try again with the correct format:\n" + msgParamsFormat
	msgComplete      = "Onboarding complete! Your campaign is ready to start."
	msgExists        = "A profile already exists for %s."
	msgFailed        = "There was an issue creating your profile. Please try again with /start"
	msgCancelled     = "Onboarding cancelled. Use /start to begin again."
	msgNotStarted    = "Send /start to begin onboarding."
)

const (
	defaultProduct = "Prospect"
	commandStart   = "/start"
	commandCancel  = "/cancel"
)

// session is one user's conversation. mu serializes that user's messages;
// other users' sessions proceed independently.
type session struct {
	mu          sync.Mutex
	state       State
	tenantID    string
	displayName string
	email       string
	industry    string
	location    string
}

// step consumes one answer in a given state and returns the reply and the
// next state.
type step func(b *Bot, ctx context.Context, s *session, text string) (string, State)

var transitions = map[State]step{
	StateEmail:          (*Bot).onEmail,
	StateIndustry:       (*Bot).onIndustry,
	StateLocation:       (*Bot).onLocation,
	StateCampaignParams: (*Bot).onCampaignParams,
}

// prompts re-asks the question of a state.
var prompts = map[State]string{
	StateEmail:          "Please provide your email address.",
	StateIndustry:       msgIndustry,
	StateLocation:       msgLocation,
	StateCampaignParams: msgCampaign,
}

// Bot holds the in-memory onboarding sessions, keyed by sender id.
type Bot struct {
	sink    ProfileSink
	logger  *slog.Logger
	product string

	mu       sync.Mutex // guards sessions only
	sessions map[string]*session
}

// Option configures a Bot.
type Option func(*Bot)

// WithProductName sets the name used in the welcome message.
func WithProductName(name string) Option {
	return func(b *Bot) { b.product = name }
}

// New creates a Bot that hands completed profiles to sink.
func New(sink ProfileSink, logger *slog.Logger, opts ...Option) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		sink:     sink,
		logger:   logger,
		product:  defaultProduct,
		sessions: make(map[string]*session),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// State returns the conversation state of a user.
func (b *Bot) State(userID string) State {
	s := b.session(userID)
	if s == nil {
		return StateIdle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (b *Bot) session(userID string) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[userID]
}

// Handle advances u's conversation with one message and returns the reply.
func (b *Bot) Handle(ctx context.Context, u User, text string) string {
	text = strings.TrimSpace(text)
	cmd := command(text)

	if cmd == commandStart {
		s := &session{
			state:       StateEmail,
			tenantID:    TenantID(u.Username, u.ID),
			displayName: DisplayName(u.Username, u.ID),
		}
		b.mu.Lock()
		b.sessions[u.ID] = s
		b.mu.Unlock()
		b.logger.Info("onboarding: started", "tenant_id", s.tenantID, "user", s.displayName)
		return fmt.Sprintf(msgWelcome, b.product, s.displayName)
	}

	s := b.session(u.ID)
	if s == nil {
		return msgNotStarted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active() {
		return msgNotStarted
	}

	switch {
	case cmd == commandCancel:
		s.state = StateCancelled
		b.logger.Info("onboarding: cancelled", "tenant_id", s.tenantID)
		return msgCancelled
	case cmd != "":
		return prompts[s.state]
	}

	reply, next := transitions[s.state](b, ctx, s, text)
	s.state = next
	return reply
}

// HandleMessage adapts Handle to a channels.InboundHandler. The sender id is
// the user id and metadata "username" the optional handle.
func (b *Bot) HandleMessage(ctx context.Context, msg channels.Message) ([]channels.Message, error) {
	u := User{ID: msg.SenderID, Username: strings.TrimPrefix(msg.Metadata["username"], "@")}
	reply := b.Handle(ctx, u, msg.Text)
	if reply == "" {
		return nil, nil
	}
	return []channels.Message{msg.Reply(reply)}, nil
}

// command returns the bot command in text, without any "@botname" suffix.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}

func (b *Bot) onEmail(_ context.Context, s *session, text string) (string, State) {
	if !prospect.ValidateEmail(text) {
		return msgInvalidEmail, StateEmail
	}
	s.email = text
	return msgIndustry, StateIndustry
}

func (b *Bot) onIndustry(_ context.Context, s *session, text string) (string, State) {
	if text == "" {
		return msgEmptyAnswer + "\n" + msgIndustry, StateIndustry
	}
	s.industry = text
	return msgLocation, StateLocation
}

func (b *Bot) onLocation(_ context.Context, s *session, text string) (string, State) {
	if text == "" {
		return msgEmptyAnswer + "\n" + msgLocation, StateLocation
	}
	s.location = text
	return msgCampaign, StateCampaignParams
}

func (b *Bot) onCampaignParams(ctx context.Context, s *session, text string) (string, State) {
	params, err := ParseCampaignParameters(text)
	if err != nil {
		return msgInvalidParams, StateCampaignParams
	}

	p := &prospect.ClientProfile{
		TenantID:           s.tenantID,
		Email:              s.email,
		Industry:           s.industry,
		Location:           s.location,
		CampaignParameters: params,
	}
	log := b.logger.With("tenant_id", s.tenantID)

	if err := prospect.ValidateProfile(p); err != nil {
		log.Warn("onboarding: invalid profile", "error", err)
		return msgFailed, StateDone
	}
	created, err := b.sink.CreateClient(ctx, p)
	if err != nil {
		log.Error("onboarding: create client failed", "error", err)
		return msgFailed, StateDone
	}
	if !created {
		log.Info("onboarding: client already exists")
		return fmt.Sprintf(msgExists, s.displayName), StateDone
	}
	log.Info("onboarding: client created")
	return msgComplete, StateDone
}

// ParseCampaignParameters checks that text is a JSON object and returns it
// compacted.
func ParseCampaignParameters(text string) (json.RawMessage, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, ErrInvalidCampaignParameters
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCampaignParameters, err)
	}
	return buf.Bytes(), nil
}


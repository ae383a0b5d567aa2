// Package services contains server-side business logic. This file implements
// UserService: registration, login and logout, and self-service account
// changes for the logged-in user.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/enrich"
	"github.com/dmitrijs2005/gatekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/notify"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/gatekeeper/internal/timex"
	"github.com/google/uuid"
)

// Reasons reported in ParamsError values.
const (
	MsgEmptyParams         = "parameters are empty"
	MsgUsernameLength      = "username must be 4-20 characters"
	MsgUsernameCharset     = "username may contain only letters, digits and underscores"
	MsgPasswordLength      = "password must be 5-20 characters"
	MsgPasswordMismatch    = "passwords do not match"
	MsgUsernameTaken       = "username already exists"
	MsgEmailTaken          = "email already registered"
	MsgInvalidCredentials  = "invalid credentials"
	MsgNewPasswordLength   = "new password must be 5-20 characters"
	MsgNewPasswordMismatch = "new passwords do not match"
	MsgOldPasswordWrong    = "old password is incorrect"
	MsgEmailInUse          = "email already used by another account"
	MsgUnknownStatus       = "unknown status"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SessionManager is the part of sessions.Manager the service relies on.
type SessionManager interface {
	Create(ctx context.Context, userID string) (string, error)
	Resolve(ctx context.Context, handle string) (string, error)
	Invalidate(ctx context.Context, handle string) error
}

// PasswordCodec hashes and checks passwords.
type PasswordCodec interface {
	Hash(plaintext string) string
	Verify(plaintext, digest string) bool
}

// Locator maps an IP to a location label.
type Locator interface {
	Lookup(ip string) string
}

// Publisher accepts notification events without blocking.
type Publisher interface {
	Publish(ev notify.Event)
}

// Recorder observes registration and login outcomes.
type Recorder interface {
	ObserveLogin(result string)
	ObserveRegistration(result string)
}

type RegisterInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	Email           string
}

// RequestMeta is what the transport knows about the caller. It feeds
// enrichment only.
type RequestMeta struct {
	Headers    enrich.HeaderGetter
	RemoteAddr string
}

type LoginInput struct {
	Username string
	Password string
	Meta     RequestMeta
}

type LoginResult struct {
	User          *models.User
	SessionHandle string
}

type ChangePasswordInput struct {
	OldPassword        string
	NewPassword        string
	ConfirmNewPassword string
}

// ProfilePatch carries optional profile changes. Empty fields are left alone.
type ProfilePatch struct {
	DisplayName string
	AvatarRef   string
	Bio         string
	Email       string
}

// UserServiceDeps wires UserService. Locator, Notifier, Recorder, Logger and
// Clock are optional.
type UserServiceDeps struct {
	Users    users.Repository
	Sessions SessionManager
	Codec    PasswordCodec
	Locator  Locator
	Notifier Publisher
	Recorder Recorder
	Logger   logging.Logger
	Clock    timex.Clock
}

// UserService implements the account operations. It never checks roles;
// that is the guard's job.
type UserService struct {
	users    users.Repository
	sessions SessionManager
	codec    PasswordCodec
	locator  Locator
	notifier Publisher
	recorder Recorder
	logger   logging.Logger
	now      timex.Clock
	newID    func() string
}

func NewUserService(d UserServiceDeps) *UserService {
	s := &UserService{
		users:    d.Users,
		sessions: d.Sessions,
		codec:    d.Codec,
		locator:  d.Locator,
		notifier: d.Notifier,
		recorder: d.Recorder,
		logger:   d.Logger,
		now:      d.Clock,
		newID:    func() string { return uuid.NewString() },
	}
	if s.locator == nil {
		s.locator = enrich.NewLocator(nil, "")
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = logging.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("module", "user_service")
	return s
}

type nopRecorder struct{}

func (nopRecorder) ObserveLogin(string)        {}
func (nopRecorder) ObserveRegistration(string) {}

// Register creates an ACTIVE regular user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	u, err := s.register(ctx, in)
	s.recorder.ObserveRegistration(outcome(err))
	return u, err
}

func (s *UserService) register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if blank(in.Username, in.Password, in.ConfirmPassword, in.Email) {
		return nil, common.NewParamsError(MsgEmptyParams)
	}
	if in.Password != in.ConfirmPassword {
		return nil, common.NewParamsError(MsgPasswordMismatch)
	}
	if !lengthBetween(in.Username, 4, 20) {
		return nil, common.NewParamsError(MsgUsernameLength)
	}
	if !usernamePattern.MatchString(in.Username) {
		return nil, common.NewParamsError(MsgUsernameCharset)
	}
	if !lengthBetween(in.Password, 5, 20) {
		return nil, common.NewParamsError(MsgPasswordLength)
	}

	n, err := s.users.CountByUsername(ctx, in.Username)
	if err != nil {
		return nil, s.internal(ctx, "count by username", err)
	}
	if n > 0 {
		return nil, common.NewParamsError(MsgUsernameTaken)
	}
	n, err = s.users.CountByEmail(ctx, in.Email)
	if err != nil {
		return nil, s.internal(ctx, "count by email", err)
	}
	if n > 0 {
		return nil, common.NewParamsError(MsgEmailTaken)
	}

	now := s.now()
	u := &models.User{
		ID:           s.newID(),
		Username:     in.Username,
		PasswordHash: s.codec.Hash(in.Password),
		Email:        in.Email,
		Role:         models.RoleRegularUser,
		Status:       models.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// A duplicate caught by the unique index here lost a race with another
	// registration; it is reported like any other persistence failure.
	if err := s.users.Save(ctx, u); err != nil {
		return nil, s.internal(ctx, "save user", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login checks credentials with a single combined lookup, records the login
// and opens a session.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	res, err := s.login(ctx, in)
	s.recorder.ObserveLogin(outcome(err))
	return res, err
}

func (s *UserService) login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if blank(in.Username, in.Password) {
		return nil, common.NewParamsError(MsgEmptyParams)
	}

	u, err := s.users.FindByUsernameAndPasswordHash(ctx, in.Username, s.codec.Hash(in.Password))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewParamsError(MsgInvalidCredentials)
		}
		return nil, s.internal(ctx, "find by credentials", err)
	}

	now := s.now()
	ip := enrich.ClientIP(in.Meta.Headers, in.Meta.RemoteAddr)
	location := s.locator.Lookup(ip)
	device := enrich.Device(userAgent(in.Meta.Headers))

	ok, err := s.users.RecordLogin(ctx, u.ID, now, ip, location)
	if err := s.updated(ctx, "record login", ok, err); err != nil {
		return nil, err
	}
	u.LastLoginAt = &now
	u.LastLoginIP = ip
	u.LastLoginLocation = location
	u.UpdatedAt = now

	handle, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return nil, s.internal(ctx, "create session", err)
	}

	if s.notifier != nil {
		s.notifier.Publish(notify.LoginEvent{
			UserID:      u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			LoginAt:     now,
			Location:    location,
			Device:      device,
			IP:          ip,
		})
	}

	s.logger.Info(ctx, "user logged in", "user_id", u.ID, "location", location, "device", device)
	return &LoginResult{User: u, SessionHandle: handle}, nil
}

// Logout ends the session. It always succeeds.
func (s *UserService) Logout(ctx context.Context, handle string) error {
	if err := s.sessions.Invalidate(ctx, handle); err != nil {
		s.logger.Warn(ctx, "logout: session not removed", "error", err)
	}
	return nil
}

// CurrentUser returns the freshly loaded record of the session's user.
func (s *UserService) CurrentUser(ctx context.Context, handle string) (*models.User, error) {
	userID, err := s.sessions.Resolve(ctx, handle)
	if err != nil {
		return nil, common.ErrorNotAuthenticated
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "find by id", err)
	}
	return u, nil
}

func (s *UserService) ChangePassword(ctx context.Context, handle string, in ChangePasswordInput) error {
	u, err := s.CurrentUser(ctx, handle)
	if err != nil {
		return err
	}
	return s.ChangePasswordFor(ctx, u, in)
}

// ChangePasswordFor is ChangePassword for a caller the guard has already
// resolved.
func (s *UserService) ChangePasswordFor(ctx context.Context, u *models.User, in ChangePasswordInput) error {
	if blank(in.OldPassword, in.NewPassword, in.ConfirmNewPassword) {
		return common.NewParamsError(MsgEmptyParams)
	}
	if !lengthBetween(in.NewPassword, 5, 20) {
		return common.NewParamsError(MsgNewPasswordLength)
	}
	if in.NewPassword != in.ConfirmNewPassword {
		return common.NewParamsError(MsgNewPasswordMismatch)
	}
	if !s.codec.Verify(in.OldPassword, u.PasswordHash) {
		return common.NewParamsError(MsgOldPasswordWrong)
	}

	ok, err := s.users.UpdatePassword(ctx, u.ID, s.codec.Hash(in.NewPassword), s.now())
	if err := s.updated(ctx, "change password", ok, err); err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "user_id", u.ID)
	return nil
}

func (s *UserService) UpdateProfile(ctx context.Context, handle string, patch ProfilePatch) (*models.User, error) {
	u, err := s.CurrentUser(ctx, handle)
	if err != nil {
		return nil, err
	}
	return s.UpdateProfileFor(ctx, u, patch)
}

// UpdateProfileFor is UpdateProfile for a caller the guard has already
// resolved. u is not modified; the merged record is returned.
func (s *UserService) UpdateProfileFor(ctx context.Context, u *models.User, patch ProfilePatch) (*models.User, error) {
	u = u.Clone()
	if email := strings.TrimSpace(patch.Email); email != "" {
		n, err := s.users.CountByEmailExcludingID(ctx, email, u.ID)
		if err != nil {
			return nil, s.internal(ctx, "count by email", err)
		}
		if n > 0 {
			return nil, common.NewParamsError(MsgEmailInUse)
		}
		u.Email = email
	}
	if patch.DisplayName != "" {
		u.DisplayName = patch.DisplayName
	}
	if patch.AvatarRef != "" {
		u.AvatarRef = patch.AvatarRef
	}
	if patch.Bio != "" {
		u.Bio = patch.Bio
	}

	u.UpdatedAt = s.now()
	ok, err := s.users.UpdateByID(ctx, u)
	if err := s.updated(ctx, "update profile", ok, err); err != nil {
		return nil, err
	}
	return u, nil
}

// SetUserStatus changes another account's status. Callers are expected to
// sit behind an admin-only guard policy.
func (s *UserService) SetUserStatus(ctx context.Context, userID string, status models.Status) (*models.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, common.NewParamsError(MsgEmptyParams)
	}
	if _, err := models.StatusFromCode(int(status)); err != nil {
		return nil, common.NewParamsError(MsgUnknownStatus)
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "find by id", err)
	}

	now := s.now()
	ok, err := s.users.UpdateStatus(ctx, u.ID, status, now)
	if err := s.updated(ctx, "set status", ok, err); err != nil {
		return nil, err
	}
	u.Status = status
	u.UpdatedAt = now

	s.logger.Info(ctx, "user status changed", "user_id", u.ID, "status", status.String())
	return u, nil
}

// --- helpers below ---

// updated turns the result of a directory update into the service error.
func (s *UserService) updated(ctx context.Context, op string, ok bool, err error) error {
	if err != nil {
		return s.internal(ctx, op, err)
	}
	if !ok {
		return s.internal(ctx, op, errors.New("no rows updated"))
	}
	return nil
}

// internal logs the cause and returns the generic system error.
func (s *UserService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, "operation failed", "op", op, "error", err)
	return common.ErrorInternal
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, common.ErrorInvalidParams):
		return metrics.ResultFailure
	default:
		return metrics.ResultError
	}
}

func userAgent(h enrich.HeaderGetter) string {
	if h == nil {
		return ""
	}
	return h.Get("User-Agent")
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func lengthBetween(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}

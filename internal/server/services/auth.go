package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/audit"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/bruteforce"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/google/uuid"
)

// Recorder receives outcome counts. *metrics.Metrics implements it.
type Recorder interface {
	LoginOutcome(outcome string)
	RefreshOutcome(outcome string)
	LogoutOutcome(scope string)
}

// AccessTokenParser validates access tokens. *auth.Signer implements it.
type AccessTokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type LoginInput struct {
	Username    string
	Password    string
	SourceIP    string
	Fingerprint models.DeviceFingerprint
}

type LoginResult struct {
	UserID   string
	Username string
	Tokens   *IssuedTokens
}

// AuthService orchestrates login, refresh and logout over the session core.
type AuthService struct {
	guard       bruteforce.Guard
	credentials *CredentialValidator
	issuer      *TokenIssuer
	rotator     *RefreshRotator
	revocation  *RevocationManager
	parser      AccessTokenParser
	publisher   audit.Publisher
	recorder    Recorder
	now         func() time.Time
	log         logging.Logger
}

type AuthServiceDeps struct {
	Guard       bruteforce.Guard
	Credentials *CredentialValidator
	Issuer      *TokenIssuer
	Rotator     *RefreshRotator
	Revocation  *RevocationManager
	Parser      AccessTokenParser
	Publisher   audit.Publisher
	Recorder    Recorder
}

func NewAuthService(d AuthServiceDeps, log logging.Logger, opts ...Option) *AuthService {
	s := applyOptions(opts)
	recorder := d.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	publisher := d.Publisher
	if publisher == nil {
		publisher = audit.NewLogPublisher(log)
	}
	return &AuthService{
		guard:       d.Guard,
		credentials: d.Credentials,
		issuer:      d.Issuer,
		rotator:     d.Rotator,
		revocation:  d.Revocation,
		parser:      d.Parser,
		publisher:   publisher,
		recorder:    recorder,
		now:         s.now,
		log:         log.With("module", "auth_service"),
	}
}

// Login checks the brute-force guard first, then the credentials. Only a
// confirmed invalid-credentials result counts as a failure for the source.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	s.emit(ctx, audit.Event{Type: audit.LoginAttempted, Username: in.Username, SourceIP: in.SourceIP})

	blocked, err := s.guard.IsBlocked(ctx, in.SourceIP)
	if err != nil {
		s.log.Error(ctx, "brute force guard unavailable", "error", err)
		err = common.NewStorageError(err)
		s.loginFailed(ctx, in, err)
		return nil, err
	}
	if blocked {
		s.emit(ctx, audit.Event{Type: audit.LoginBlocked, Username: in.Username, SourceIP: in.SourceIP})
		s.recorder.LoginOutcome("blocked")
		return nil, common.NewRateLimitError()
	}

	creds, err := s.credentials.Validate(ctx, in.Username, in.Password)
	if err != nil {
		s.loginFailed(ctx, in, err)
		return nil, err
	}
	if !creds.Valid {
		if err := s.guard.RecordFailure(ctx, in.SourceIP); err != nil {
			s.log.Warn(ctx, "failed attempt not recorded", "error", err)
		}
		s.emit(ctx, audit.Event{
			Type:     audit.LoginFailed,
			Username: in.Username,
			SourceIP: in.SourceIP,
			Reason:   common.ReasonInvalidCredentials,
		})
		s.recorder.LoginOutcome("invalid_credentials")
		return nil, common.NewAuthError(common.ReasonInvalidCredentials)
	}

	tokens, err := s.issuer.Issue(ctx, creds.Username, creds.UserID, in.Fingerprint)
	if err != nil {
		s.loginFailed(ctx, in, err)
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Type:     audit.LoginSucceeded,
		UserID:   creds.UserID,
		Username: creds.Username,
		SourceIP: in.SourceIP,
		TokenID:  tokens.Record.ID,
	})
	s.recorder.LoginOutcome("success")

	return &LoginResult{UserID: creds.UserID, Username: creds.Username, Tokens: tokens}, nil
}

// loginFailed records a login that ended in an error other than bad
// credentials. The error kind is the reason.
func (s *AuthService) loginFailed(ctx context.Context, in LoginInput, err error) {
	kind := common.KindOf(err).String()
	s.emit(ctx, audit.Event{Type: audit.LoginFailed, Username: in.Username, SourceIP: in.SourceIP, Reason: kind})
	s.recorder.LoginOutcome(kind)
}

// Refresh rotates presented. The failure reason goes to the audit sink only.
func (s *AuthService) Refresh(ctx context.Context, presented string, fp models.DeviceFingerprint, sourceIP string) (*IssuedTokens, error) {
	s.emit(ctx, audit.Event{Type: audit.RefreshAttempted, SourceIP: sourceIP})

	tokens, err := s.rotator.Rotate(ctx, presented, fp)
	if err != nil {
		reason := common.ReasonOf(err)
		if reason == "" {
			reason = common.KindOf(err).String()
		}
		s.emit(ctx, audit.Event{Type: audit.RefreshFailed, SourceIP: sourceIP, Reason: reason})
		s.recorder.RefreshOutcome(reason)
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Type:     audit.RefreshSucceeded,
		UserID:   tokens.Record.UserID,
		SourceIP: sourceIP,
		TokenID:  tokens.Record.ID,
	})
	s.recorder.RefreshOutcome("success")
	return tokens, nil
}

// Logout revokes presented. It never fails: unknown, revoked or malformed
// tokens are ignored and store errors are only logged.
func (s *AuthService) Logout(ctx context.Context, presented, sourceIP string) {
	s.recorder.LogoutOutcome("single")

	if presented == "" {
		return
	}

	var userID, tokenID string
	if t, err := s.rotator.Inspect(ctx, presented); err == nil {
		userID, tokenID = t.UserID, t.ID
	}

	changed, err := s.revocation.RevokePresented(ctx, presented)
	if err != nil {
		s.log.Warn(ctx, "logout revocation failed", "error", err)
		return
	}
	if changed {
		s.emit(ctx, audit.Event{Type: audit.TokenRevoked, UserID: userID, TokenID: tokenID, SourceIP: sourceIP, Reason: "logout"})
	}
}

// LogoutAll revokes every refresh token of the user identified by a valid
// access token.
func (s *AuthService) LogoutAll(ctx context.Context, accessToken, sourceIP string) (int64, error) {
	if accessToken == "" {
		return 0, common.NewValidationError("access token is required")
	}

	claims, err := s.parser.Parse(accessToken)
	if err != nil {
		return 0, err
	}

	n, err := s.revocation.RevokeAllForUser(ctx, claims.UserID)
	if err != nil {
		return 0, err
	}

	s.emit(ctx, audit.Event{
		Type:     audit.UserTokensRevoked,
		UserID:   claims.UserID,
		Username: claims.Subject,
		SourceIP: sourceIP,
		Count:    n,
		Reason:   "logout_all",
	})
	s.recorder.LogoutOutcome("all")
	return n, nil
}

func (s *AuthService) emit(ctx context.Context, e audit.Event) {
	e.ID = uuid.NewString()
	e.OccurredAt = s.now()
	s.publisher.Publish(ctx, e)
}

type nopRecorder struct{}

func (nopRecorder) LoginOutcome(string)   {}
func (nopRecorder) RefreshOutcome(string) {}
func (nopRecorder) LogoutOutcome(string)  {}

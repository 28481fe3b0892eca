package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/peraclub/rewards/pkg/rewards"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Domain-level error values returned by the auth service.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidConfig      = errors.New("invalid auth config")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minPasswordLength = 6
	defaultIssuer     = "rewards"
	defaultTokenTTL   = 24 * time.Hour
	defaultRolesJSON  = `["member"]`
)

// User is the authenticated account identity consumed by the API layer.
type User struct {
	UserID   string
	Email    string
	FullName string
	Roles    []string
}

// Session is an issued sign-in: the bearer token plus its identity.
type Session struct {
	Token     string
	User      User
	ExpiresAt time.Time
}

// Config holds token settings.
type Config struct {
	SigningKey []byte
	Issuer     string
	TokenTTL   time.Duration
}

// Validate defaults and checks the configuration.
func (cfg *Config) Validate() error {
	if len(cfg.SigningKey) == 0 {
		return fmt.Errorf("%w: signing key is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return nil
}

type sessionClaims struct {
	Email    string   `json:"email"`
	FullName string   `json:"name"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Service implements the authentication collaborator: credentials, session
// tokens, and auth-state change notifications. The rewards core consumes only
// the user id it yields.
type Service struct {
	db       *gorm.DB
	profiles rewards.Store
	cfg      Config
	nowFn    func() time.Time

	mutex          sync.Mutex
	revoked        map[string]time.Time
	subscribers    map[int]chan *User
	nextSubscriber int
}

// New wires an auth Service. The profiles store receives the account profile
// created alongside every new user.
func New(db *gorm.DB, profiles rewards.Store, cfg Config, now func() time.Time) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db dependency is nil", ErrInvalidConfig)
	}
	if profiles == nil {
		return nil, fmt.Errorf("%w: profiles store dependency is nil", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		db:          db,
		profiles:    profiles,
		cfg:         cfg,
		nowFn:       now,
		revoked:     make(map[string]time.Time),
		subscribers: make(map[int]chan *User),
	}, nil
}

// SignUp registers a user and creates the paired account profile.
func (service *Service) SignUp(ctx context.Context, email, password, fullName string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)
	if !emailPattern.MatchString(email) {
		return Session{}, ErrInvalidEmail
	}
	if err := checkPasswordStrength(password); err != nil {
		return Session{}, err
	}
	if len(fullName) < 2 {
		return Session{}, fmt.Errorf("%w: name must be at least 2 characters", ErrInvalidCredentials)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}
	user := UserModel{
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hash),
		Roles:        datatypes.JSON([]byte(defaultRolesJSON)),
	}
	if err := service.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateEmail(err) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, err
	}

	now := service.nowFn()
	err = service.profiles.CreateProfile(ctx, rewards.AccountProfile{
		UserID:       user.ID,
		FullName:     fullName,
		Email:        email,
		Tier:         rewards.TierBronze,
		MemberSince:  now,
		MemberNumber: newMemberNumber(),
	})
	if err != nil {
		return Session{}, err
	}
	return service.issueSession(user)
}

// SignIn verifies credentials and issues a session token.
func (service *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user UserModel
	err := service.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return service.issueSession(user)
}

// SignOut revokes the token and notifies subscribers.
func (service *Service) SignOut(token string) error {
	claims, err := service.parseToken(token)
	if err != nil {
		return err
	}
	service.mutex.Lock()
	service.revoked[claims.ID] = claims.ExpiresAt.Time
	service.mutex.Unlock()
	service.notify(nil)
	return nil
}

// CurrentUser resolves the account behind a session token.
func (service *Service) CurrentUser(ctx context.Context, token string) (User, error) {
	claims, err := service.parseToken(token)
	if err != nil {
		return User{}, err
	}
	service.mutex.Lock()
	_, isRevoked := service.revoked[claims.ID]
	service.pruneRevokedLocked()
	service.mutex.Unlock()
	if isRevoked {
		return User{}, ErrNotAuthenticated
	}
	var user UserModel
	err = service.db.WithContext(ctx).Where("id = ?", claims.Subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotAuthenticated
	}
	if err != nil {
		return User{}, err
	}
	return mapUser(user), nil
}

// Subscribe delivers the current account (or nil) on every auth-state
// transition. The returned cancel func releases the subscription.
func (service *Service) Subscribe() (<-chan *User, func()) {
	channel := make(chan *User, 8)
	service.mutex.Lock()
	id := service.nextSubscriber
	service.nextSubscriber++
	service.subscribers[id] = channel
	service.mutex.Unlock()
	cancel := func() {
		service.mutex.Lock()
		delete(service.subscribers, id)
		service.mutex.Unlock()
	}
	return channel, cancel
}

func (service *Service) issueSession(user UserModel) (Session, error) {
	mapped := mapUser(user)
	now := service.nowFn()
	expiresAt := now.Add(service.cfg.TokenTTL)
	claims := sessionClaims{
		Email:    mapped.Email,
		FullName: mapped.FullName,
		Roles:    mapped.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    service.cfg.Issuer,
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.cfg.SigningKey)
	if err != nil {
		return Session{}, err
	}
	userCopy := mapped
	service.notify(&userCopy)
	return Session{Token: token, User: mapped, ExpiresAt: expiresAt}, nil
}

func (service *Service) parseToken(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return service.cfg.SigningKey, nil
	}, jwt.WithIssuer(service.cfg.Issuer), jwt.WithTimeFunc(service.nowFn))
	if err != nil || !parsed.Valid {
		return nil, ErrNotAuthenticated
	}
	return claims, nil
}

func (service *Service) notify(user *User) {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	for _, channel := range service.subscribers {
		select {
		case channel <- user:
		default:
			// Slow subscriber; drop rather than block sign-in.
		}
	}
}

func (service *Service) pruneRevokedLocked() {
	now := service.nowFn()
	for id, expiry := range service.revoked {
		if expiry.Before(now) {
			delete(service.revoked, id)
		}
	}
}

func checkPasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: at least %d characters", ErrWeakPassword, minPasswordLength)
	}
	var hasLower, hasUpper, hasDigit bool
	for _, character := range password {
		switch {
		case character >= 'a' && character <= 'z':
			hasLower = true
		case character >= 'A' && character <= 'Z':
			hasUpper = true
		case character >= '0' && character <= '9':
			hasDigit = true
		}
	}
	if !hasLower || !hasUpper || !hasDigit {
		return fmt.Errorf("%w: needs lower, upper, and digit", ErrWeakPassword)
	}
	return nil
}

func isDuplicateEmail(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique") && strings.Contains(message, "email")
}

func mapUser(user UserModel) User {
	var roles []string
	if len(user.Roles) > 0 {
		_ = json.Unmarshal(user.Roles, &roles)
	}
	if len(roles) == 0 {
		roles = []string{"member"}
	}
	return User{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Roles:    roles,
	}
}

func newMemberNumber() string {
	return "PC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

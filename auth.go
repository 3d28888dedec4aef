package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL       = 7 * 24 * time.Hour
	tokenIssuer    = "virus-arena"
	secretSetting  = "jwt_secret"
	secretLen      = 32
	bcryptCost     = 12
	minPasswordLen = 4
	minUsernameLen = 2
	maxUsernameLen = 16
	loginWindow    = time.Minute
	loginBurst     = 10 // attempts per address per window
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrBadUsername    = fmt.Errorf("username must be %d-%d letters, digits, _ or -", minUsernameLen, maxUsernameLen)
	ErrShortPassword  = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrRateLimited    = errors.New("too many login attempts, try again later")
	ErrInvalidToken   = errors.New("invalid token")
)

// Account is an authenticated identity. Players joined by an account carry
// its ID and username into world state and recorded events.
type Account struct {
	ID       int64
	Username string
	Token    string
}

type accountClaims struct {
	Username string `json:"usr"`
	jwt.RegisteredClaims
}

// Auth registers accounts, checks passwords and issues signed tokens
type Auth struct {
	db      *DB
	secret  []byte
	cost    int
	limiter *loginLimiter
}

// NewAuth loads the token signing secret from db, creating it on first run
func NewAuth(db *DB) (*Auth, error) {
	secret, err := signingSecret(db)
	if err != nil {
		return nil, err
	}
	return &Auth{
		db:      db,
		secret:  secret,
		cost:    bcryptCost,
		limiter: newLoginLimiter(),
	}, nil
}

func signingSecret(db *DB) ([]byte, error) {
	if b, err := hex.DecodeString(db.GetSetting(secretSetting)); err == nil && len(b) == secretLen {
		return b, nil
	}
	secret := make([]byte, secretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate token secret: %w", err)
	}
	if err := db.SetSetting(secretSetting, hex.EncodeToString(secret)); err != nil {
		return nil, fmt.Errorf("store token secret: %w", err)
	}
	return secret, nil
}

// Register creates an account and signs it in
func (a *Auth) Register(username, password string) (Account, error) {
	username, err := cleanUsername(username)
	if err != nil {
		return Account{}, err
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return Account{}, ErrShortPassword
	}

	taken, err := a.db.UsernameExists(username)
	if err != nil {
		return Account{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return Account{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := a.db.CreatePlayer(username, string(hash))
	if err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return a.signIn(id, username)
}

// Login checks a password and signs the account in. addr is rate limited.
func (a *Auth) Login(username, password, addr string) (Account, error) {
	if !a.limiter.allow(addr, time.Now()) {
		return Account{}, ErrRateLimited
	}

	row, err := a.db.GetPlayerByUsername(strings.TrimSpace(username))
	if err != nil {
		return Account{}, fmt.Errorf("lookup account: %w", err)
	}
	if row == nil || row.PassHash == "" {
		return Account{}, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PassHash), []byte(password)) != nil {
		return Account{}, ErrBadCredentials
	}

	if err := a.db.TouchLogin(row.ID); err != nil {
		log.Printf("auth: record login for %d: %v", row.ID, err)
	}
	return a.signIn(row.ID, row.Username)
}

// Resume restores an account from a token issued by Register or Login
func (a *Auth) Resume(token string) (Account, error) {
	claims := &accountClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.Username == "" {
		return Account{}, ErrInvalidToken
	}
	return Account{ID: id, Username: claims.Username, Token: token}, nil
}

func (a *Auth) signIn(id int64, username string) (Account, error) {
	now := time.Now()
	claims := accountClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(id, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Account{}, fmt.Errorf("sign token: %w", err)
	}
	return Account{ID: id, Username: username, Token: token}, nil
}

// cleanUsername trims and validates a username
func cleanUsername(s string) (string, error) {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n < minUsernameLen || n > maxUsernameLen {
		return "", ErrBadUsername
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return "", ErrBadUsername
		}
	}
	return s, nil
}

// loginLimiter allows loginBurst attempts per address in each loginWindow
type loginLimiter struct {
	mu       sync.Mutex
	attempts map[string]attemptWindow
}

type attemptWindow struct {
	start time.Time
	n     int
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{attempts: make(map[string]attemptWindow)}
}

func (l *loginLimiter) allow(addr string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.attempts[addr]
	if now.Sub(w.start) >= loginWindow {
		if len(l.attempts) > 1024 {
			l.prune(now)
		}
		w = attemptWindow{start: now}
	}
	w.n++
	l.attempts[addr] = w
	return w.n <= loginBurst
}

func (l *loginLimiter) prune(now time.Time) {
	for addr, w := range l.attempts {
		if now.Sub(w.start) >= loginWindow {
			delete(l.attempts, addr)
		}
	}
}

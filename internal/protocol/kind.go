package protocol

import "fmt"

// Kind identifies a protocol message
type Kind int

const (
	KindUnknown Kind = iota

	// Session setup
	KindWelcome
	KindAuthRequest
	KindPasswordRequest
	KindUsername
	KindPassword
	KindAuthSuccess
	KindAuthFail
	KindAlreadyLoggedIn
	KindDisconnect

	// Liveness
	KindHeartbeatProbe
	KindHeartbeatReply

	// Session tokens and reconnection
	KindTokenIssue
	KindTokenRequest
	KindTokenReply
	KindTokenRefresh
	KindReconnect
	KindReconnectSuccess
	KindReconnectAlreadyLoggedIn
	KindReconnectFail

	// Registration
	KindRegister
	KindRegisterSuccess
	KindRegisterFail

	// Queue and gameplay
	KindQueued
	KindGameStart
	KindQuestionPrompt
	KindAnswer
	KindGameOver
	KindInfo
)

var kindTokens = map[Kind]string{
	KindWelcome:                  "WELCOME",
	KindAuthRequest:              "AUTH_USERNAME",
	KindPasswordRequest:          "AUTH_PASSWORD",
	KindUsername:                 "USERNAME",
	KindPassword:                 "PASSWORD",
	KindAuthSuccess:              "AUTH_SUCCESS",
	KindAuthFail:                 "AUTH_FAIL",
	KindAlreadyLoggedIn:          "AUTH_ALREADY_LOGGED_IN",
	KindDisconnect:               "DISCONNECT",
	KindHeartbeatProbe:           "PING",
	KindHeartbeatReply:           "PONG",
	KindTokenIssue:               "TOKEN",
	KindTokenRequest:             "TOKEN_REQUEST",
	KindTokenReply:               "TOKEN_REPLY",
	KindTokenRefresh:             "TOKEN_REFRESH",
	KindReconnect:                "RECONNECT",
	KindReconnectSuccess:         "RECONNECT_SUCCESS",
	KindReconnectAlreadyLoggedIn: "RECONNECT_ALREADY_LOGGED_IN",
	KindReconnectFail:            "RECONNECT_FAIL",
	KindRegister:                 "REGISTER",
	KindRegisterSuccess:          "REGISTER_SUCCESS",
	KindRegisterFail:             "REGISTER_FAIL",
	KindQueued:                   "QUEUED",
	KindGameStart:                "GAME_START",
	KindQuestionPrompt:           "QUESTION",
	KindAnswer:                   "ANSWER",
	KindGameOver:                 "GAME_OVER",
	KindInfo:                     "INFO",
}

var tokenKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTokens))
	for k, t := range kindTokens {
		m[t] = k
	}
	return m
}()

// Kinds returns every known kind in declaration order
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindTokens))
	for k := KindWelcome; k <= KindInfo; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseKind maps a wire token to its Kind
func ParseKind(token string) (Kind, error) {
	k, ok := tokenKinds[token]
	if !ok {
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, token)
	}
	return k, nil
}

// Token returns the wire token for the kind, or an empty string for unknown kinds
func (k Kind) Token() string {
	return kindTokens[k]
}

func (k Kind) String() string {
	if t, ok := kindTokens[k]; ok {
		return t
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

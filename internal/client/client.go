// Package client implements the player side of the quiz protocol
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/quizmatch/internal/protocol"
)

// Menu choices shown after WELCOME
const (
	choiceLogin     = "1"
	choiceReconnect = "2"
	choiceRegister  = "3"
)

// Config holds client settings
type Config struct {
	WriteTimeout time.Duration
	InboxSize    int
}

// DefaultConfig returns the default client config
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 5 * time.Second,
		InboxSize:    32,
	}
}

// intent records which menu option the user picked, since AUTH_USERNAME
// is sent by the server regardless of the choice
type intent int

const (
	intentNone intent = iota
	intentLogin
	intentReconnect
	intentRegister
)

// Client drives one connection to the quiz server
type Client struct {
	conn    *protocol.Conn
	console *Console
	tokens  *TokenStore
	logger  *slog.Logger
	config  Config

	writeMu   sync.Mutex
	intent    intent
	username  string
	tokenPath string
}

// New creates a client over an established connection
func New(conn net.Conn, console *Console, tokens *TokenStore, logger *slog.Logger, cfg Config) *Client {
	return &Client{
		conn:    protocol.NewConn(conn),
		console: console,
		tokens:  tokens,
		logger:  logger.With(slog.String("component", "client")),
		config:  cfg,
	}
}

// errDone ends the session without error
var errDone = errors.New("session finished")

// Run processes server messages until the session ends
// It returns nil when the server or the user ends the session normally
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.conn.Close()

	inbox := make(chan protocol.Message, c.config.InboxSize)
	readErr := make(chan error, 1)
	go c.readLoop(ctx, inbox, readErr)

	for {
		select {
		case <-ctx.Done():
			_ = c.send(protocol.KindDisconnect, "")
			return nil
		case err := <-readErr:
			// messages read before the connection ended still count
			if done, herr := c.drain(inbox); done {
				return herr
			}
			if errors.Is(err, io.EOF) {
				c.console.Println("Connection closed by server.")
				return nil
			}
			return fmt.Errorf("reading from server: %w", err)
		case msg := <-inbox:
			if done, err := c.finish(c.handle(msg)); done {
				return err
			}
		}
	}
}

func (c *Client) drain(inbox <-chan protocol.Message) (bool, error) {
	for {
		select {
		case msg := <-inbox:
			if done, err := c.finish(c.handle(msg)); done {
				return true, err
			}
		default:
			return false, nil
		}
	}
}

// finish maps a handler result onto Run's return
func (c *Client) finish(err error) (bool, error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, errDone):
		return true, nil
	case errors.Is(err, io.EOF):
		// console closed
		_ = c.send(protocol.KindDisconnect, "")
		return true, nil
	default:
		return true, err
	}
}

// readLoop answers probes immediately so a blocked prompt never looks like a dead client
func (c *Client) readLoop(ctx context.Context, inbox chan<- protocol.Message, readErr chan<- error) {
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			if protocol.IsTransportError(err) {
				readErr <- err
				return
			}
			c.logger.Warn("Ignoring malformed message", slog.String("error", err.Error()))
			continue
		}

		if msg.Kind == protocol.KindHeartbeatProbe {
			if err := c.send(protocol.KindHeartbeatReply, ""); err != nil {
				readErr <- err
				return
			}
			continue
		}

		select {
		case inbox <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) send(kind protocol.Kind, content string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(protocol.New(kind, content), c.config.WriteTimeout)
}

func (c *Client) handle(msg protocol.Message) error {
	c.logger.Debug("Received message", slog.String("kind", msg.Kind.String()))

	switch msg.Kind {
	case protocol.KindWelcome:
		return c.menu()
	case protocol.KindAuthRequest:
		if c.intent != intentLogin {
			return nil
		}
		username, err := c.enterUsername()
		if err != nil {
			return err
		}
		c.username = username
		return c.send(protocol.KindUsername, username)
	case protocol.KindPasswordRequest:
		password, err := c.enterPassword()
		if err != nil {
			return err
		}
		return c.send(protocol.KindPassword, password)
	case protocol.KindAuthSuccess:
		c.console.Println("Logged in as " + c.username + ".")
		c.tokenPath = c.tokens.Path(c.username)
	case protocol.KindAuthFail:
		c.console.Println("Authentication failed.")
		return errDone
	case protocol.KindAlreadyLoggedIn:
		c.console.Println("That account is already logged in elsewhere.")
		_ = c.send(protocol.KindDisconnect, "")
		return errDone
	case protocol.KindTokenIssue:
		return c.storeToken(msg.Content)
	case protocol.KindTokenRequest:
		return c.replyToken()
	case protocol.KindReconnectSuccess:
		c.console.Println("Reconnected. Queue position: " + msg.Content)
		// rotate the token that was just used
		return c.send(protocol.KindTokenRefresh, "")
	case protocol.KindReconnectAlreadyLoggedIn:
		c.console.Println("That session is already active elsewhere.")
		_ = c.send(protocol.KindDisconnect, "")
		return errDone
	case protocol.KindReconnectFail:
		c.console.Println("Reconnection failed: session token not recognised.")
		return errDone
	case protocol.KindRegisterSuccess:
		c.console.Println("Account created. Please log in.")
		c.intent = intentLogin
	case protocol.KindRegisterFail:
		c.console.Println("Registration failed: username taken or invalid.")
		return errDone
	case protocol.KindQueued:
		c.printQueued(msg)
	case protocol.KindGameStart:
		c.console.Println("Game starting!")
	case protocol.KindQuestionPrompt:
		return c.answerQuestion(msg)
	case protocol.KindGameOver:
		c.console.Println("Game over! Your score: " + msg.Content)
	case protocol.KindInfo:
		c.console.Println(msg.Content)
	case protocol.KindDisconnect:
		c.console.Println("Disconnected from server.")
		return errDone
	default:
		c.logger.Warn("Unexpected message", slog.String("kind", msg.Kind.String()))
	}
	return nil
}

func (c *Client) menu() error {
	c.console.Println("Welcome to quizmatch!")
	for {
		c.console.Println("1. Log In")
		c.console.Println("2. Reconnect")
		c.console.Println("3. Create Account")
		choice, err := c.console.Prompt("Select: ")
		if err != nil {
			return err
		}

		switch choice {
		case choiceLogin:
			c.intent = intentLogin
			return nil
		case choiceReconnect:
			c.intent = intentReconnect
			return c.send(protocol.KindReconnect, "")
		case choiceRegister:
			c.intent = intentRegister
			username, err := c.enterUsername()
			if err != nil {
				return err
			}
			password, err := c.enterPassword()
			if err != nil {
				return err
			}
			c.username = username
			return c.send(protocol.KindRegister, username+" "+password)
		default:
			c.console.Println("Invalid choice, enter 1, 2 or 3.")
		}
	}
}

func (c *Client) enterUsername() (string, error) {
	return c.console.PromptValid("Username: ", "Username must be non-empty and contain no spaces.", ValidCredential)
}

func (c *Client) enterPassword() (string, error) {
	return c.console.PromptValid("Password: ", "Password must be non-empty and contain no spaces.", ValidCredential)
}

func (c *Client) storeToken(token string) error {
	if c.tokenPath == "" {
		c.logger.Warn("Received token with no destination")
		return nil
	}
	if err := c.tokens.Save(c.tokenPath, token); err != nil {
		c.console.Println("Could not save session token: " + err.Error())
		return nil
	}
	c.console.Println("Session token saved to " + c.tokenPath)
	return nil
}

func (c *Client) replyToken() error {
	name, err := c.console.Prompt("Token file or username: ")
	if err != nil {
		return err
	}
	token, path, err := c.tokens.Load(name)
	if err != nil {
		c.console.Println("Could not read session token: " + err.Error())
		_ = c.send(protocol.KindDisconnect, "")
		return errDone
	}
	c.tokenPath = path
	return c.send(protocol.KindTokenReply, token)
}

func (c *Client) printQueued(msg protocol.Message) {
	fields := msg.Fields()
	if len(fields) == 2 {
		c.console.Printf("Waiting in queue: position %s of %s\n", fields[0], fields[1])
		return
	}
	c.console.Println("Waiting in queue: " + msg.Content)
}

// answerQuestion echoes the question's round so a late answer is not applied to a later question
func (c *Client) answerQuestion(msg protocol.Message) error {
	answer, err := c.console.PromptValid("True or False? ", "Please enter true or false.", ValidAnswer)
	if err != nil {
		return err
	}
	answer = strings.ToLower(answer)
	if round, _, err := protocol.SplitRound(msg.Content); err == nil {
		answer = protocol.WithRound(round, answer)
	}
	return c.send(protocol.KindAnswer, answer)
}

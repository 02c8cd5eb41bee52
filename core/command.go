package core

import (
	"errors"
	"sync"

	"timhal/protocol"
)

var ErrUnknownCommand = errors.New("unknown command")

// CommandHandler decodes its arguments from args and executes the command.
type CommandHandler func(args *protocol.Reader) error

// Command is one entry of the data dictionary. Responses (MCU to host) have
// no handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "oid=%c timer=%c counter_freq=%u"
	Handler CommandHandler
}

// CommandRegistry assigns sequential IDs in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	nameToID map[string]uint16
}

var globalRegistry = NewCommandRegistry()

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{nameToID: make(map[string]uint16)}
}

// RegisterCommand adds a command to the global registry.
func RegisterCommand(name, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse adds a response message to the global registry.
func RegisterResponse(name, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds a command and returns its ID. Registering a name twice
// returns the first ID.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.nameToID[name]; ok {
		return id
	}
	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{ID: id, Name: name, Format: format, Handler: handler})
	r.nameToID[name] = id
	return id
}

func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler of cmdID.
func (r *CommandRegistry) Dispatch(cmdID uint16, args *protocol.Reader) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(args)
}

// Entries returns every command and response in ID order.
func (r *CommandRegistry) Entries() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, len(r.commands))
	for i, c := range r.commands {
		out[i] = *c
	}
	return out
}

// DispatchCommand dispatches through the global registry. It has the
// signature of protocol.Handler so a Session can call it directly.
func DispatchCommand(cmdID uint16, args *protocol.Reader) error {
	return globalRegistry.Dispatch(cmdID, args)
}

func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}

// ResponseSender transmits one encoded message. *protocol.Session
// implements it.
type ResponseSender interface {
	Send(payload []byte) error
}

var responseSender ResponseSender

// SetResponseSender routes responses to s.
func SetResponseSender(s ResponseSender) {
	responseSender = s
}

// SendResponse encodes the response name with the arguments appended by args.
// Responses are dropped while no sender is attached.
func SendResponse(name string, args func(b []byte) []byte) error {
	if responseSender == nil {
		return nil
	}
	cmd, ok := globalRegistry.GetCommandByName(name)
	if !ok {
		panic("response not registered: " + name)
	}
	payload := protocol.AppendUint(make([]byte, 0, protocol.PayloadMax), uint32(cmd.ID))
	if args != nil {
		payload = args(payload)
	}
	return responseSender.Send(payload)
}

package daemon

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MessageType identifies the type of message
type MessageType string

const (
	MsgCommand     MessageType = "command"   // client -> wall: run one action
	MsgResult      MessageType = "result"    // wall -> client: outcome of a command
	MsgSubscribe   MessageType = "subscribe" // client -> wall: start status pushes
	MsgUnsubscribe MessageType = "unsubscribe"
	MsgStatus      MessageType = "status" // wall -> subscriber
	MsgPing        MessageType = "ping"
	MsgPong        MessageType = "pong"
)

// Message is the envelope for every line on the control socket
type Message struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"client_id,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
}

// Actions understood by the wall.
const (
	ActFullscreen     = "fullscreen"
	ActExitFullscreen = "exit-fullscreen"
	ActTile           = "tile"
	ActReset          = "reset"
	ActNext           = "next"
	ActPrev           = "prev"
	ActShuffle        = "shuffle"
	ActPause          = "pause"
	ActMute           = "mute"
	ActVolume         = "volume"
	ActSyncNext       = "sync-next"
	ActSyncShuffle    = "sync-shuffle"
	ActLoop           = "loop"
	ActRename         = "rename"
	ActPopout         = "popout"
	ActStatus         = "status"
	ActStart          = "start" // optional value "ROWS COLS"
	ActStop           = "stop"
)

var actions = map[string]struct {
	cell     bool // needs Row/Col
	value    bool // needs Value
	optValue bool // may carry Value
}{
	ActFullscreen:     {},
	ActExitFullscreen: {},
	ActTile:           {cell: true},
	ActReset:          {},
	ActNext:           {},
	ActPrev:           {},
	ActShuffle:        {},
	ActPause:          {},
	ActMute:           {},
	ActVolume:         {value: true},
	ActSyncNext:       {},
	ActSyncShuffle:    {},
	ActLoop:           {cell: true},
	ActRename:         {cell: true, value: true},
	ActPopout:         {cell: true},
	ActStatus:         {},
	ActStart:          {optValue: true},
	ActStop:           {},
}

// CommandPayload asks the wall to do one thing
type CommandPayload struct {
	Action string `json:"action"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Value  string `json:"value,omitempty"`
}

// NeedsCell reports whether action targets one cell.
func NeedsCell(action string) bool {
	return actions[action].cell
}

// NeedsValue reports whether action takes an argument.
func NeedsValue(action string) bool {
	return actions[action].value
}

// TakesValue reports whether action accepts an argument at all.
func TakesValue(action string) bool {
	return actions[action].value || actions[action].optValue
}

// ParseGrid reads a grid size written as "ROWS COLS" or "ROWSxCOLS".
func ParseGrid(value string) (rows, cols int, err error) {
	fields := strings.Fields(strings.ReplaceAll(strings.ToLower(value), "x", " "))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("invalid grid %q, want ROWS COLS", value)
	}
	rows, err1 := strconv.Atoi(fields[0])
	cols, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || rows < 1 || cols < 1 {
		return 0, 0, fmt.Errorf("invalid grid %q, want ROWS COLS", value)
	}
	return rows, cols, nil
}

// Validate checks the action name and its argument.
func (c CommandPayload) Validate() error {
	spec, ok := actions[c.Action]
	if !ok {
		return fmt.Errorf("unknown action %q", c.Action)
	}
	if spec.value && c.Value == "" {
		return fmt.Errorf("action %q needs a value", c.Action)
	}
	if spec.cell && (c.Row < 0 || c.Col < 0) {
		return fmt.Errorf("action %q needs a cell", c.Action)
	}
	if c.Action == ActStart && c.Value != "" {
		if _, _, err := ParseGrid(c.Value); err != nil {
			return err
		}
	}
	return nil
}

// CellStatus is one row of the wall's monitor
type CellStatus struct {
	Row      int     `json:"row"`
	Col      int     `json:"col"`
	Path     string  `json:"path"`
	Pos      float64 `json:"pos"`      // seconds, -1 when unknown
	Duration float64 `json:"duration"` // seconds, -1 when unknown
	Paused   bool    `json:"paused"`
	Muted    bool    `json:"muted"`
	Loop     bool    `json:"loop"`
	Alive    bool    `json:"alive"`
}

// StatusPayload is the whole wall at one poll
type StatusPayload struct {
	WallID string       `json:"wall_id"`
	Mode   string       `json:"mode"`
	Rows   int          `json:"rows"`
	Cols   int          `json:"cols"`
	Cells  []CellStatus `json:"cells"`
}

// ResultPayload answers a command
type ResultPayload struct {
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
	Status  *StatusPayload `json:"status,omitempty"`
}

// decodePayload re-decodes a generic payload into v
func decodePayload(payload interface{}, v interface{}) error {
	if payload == nil {
		return fmt.Errorf("missing payload")
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(payloadBytes, v)
}

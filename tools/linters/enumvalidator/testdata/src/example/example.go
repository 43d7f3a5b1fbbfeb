package example

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
)

// Label has no constants, so it is not an enum.
type Label string

type Message struct {
	Role    Role
	Content string
	Label   Label
}

type Snapshot struct {
	State State
}

func bad() {
	m := &Message{}
	m.Role = "system" // want "enum field Role assigned string literal"

	s := Snapshot{State: "sending"} // want "enum field State assigned string literal"
	_ = s
}

func good() {
	m := &Message{Role: RoleAssistant, Content: "hello", Label: "greeting"}
	m.Role = RoleUser
	m.Content = "plain strings are fine"
	m.Label = "not an enum"

	s := &Snapshot{}
	s.State = StateLoading
}

func alsoGood() {
	// OK: Variable, not literal
	state := StateIdle
	s := &Snapshot{State: state}
	_ = s
}

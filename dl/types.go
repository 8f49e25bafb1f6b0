package dl

// Persisted records. Field names are kept to one or two characters because
// these are written once per command application.

//go:generate msgp -io=false
type InvocationStatus struct {
	Uuid      []byte `json:"u" msg:"u"`
	Handler   string `json:"h" msg:"h"`
	SinkKind  int64  `json:"sk" msg:"sk"`
	SinkID    string `json:"si" msg:"si"`
	InboxTail int64  `json:"t" msg:"t"`
}

//go:generate msgp -io=false
type InboxEntry struct {
	Uuid     []byte `json:"u" msg:"u"`
	Handler  string `json:"h" msg:"h"`
	Argument []byte `json:"a" msg:"a"`
	SinkKind int64  `json:"sk" msg:"sk"`
	SinkID   string `json:"si" msg:"si"`
}

//go:generate msgp -io=false
type CompletionResult struct {
	Result  []byte `json:"r" msg:"r"`
	Failure string `json:"f" msg:"f"`
}

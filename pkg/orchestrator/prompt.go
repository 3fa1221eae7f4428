package orchestrator

// PromptProvider supplies the system prompt for one orchestration
// round. Grounded on the original's versioned-prompt-by-name lookup,
// simplified: no hot-swap UI, just a reloadable config-file source.
type PromptProvider interface {
	SystemPrompt() string
}

// StaticPrompt is the default PromptProvider: a fixed string set at
// construction time.
type StaticPrompt string

func (p StaticPrompt) SystemPrompt() string { return string(p) }

// FilePrompt reads its prompt from a loader function each call,
// letting an operator edit the prompt file and have it take effect on
// the next round without restarting the process.
type FilePrompt struct {
	load func() (string, error)
	last string
}

// NewFilePrompt builds a FilePrompt backed by load, which is called on
// every SystemPrompt(); a failed load falls back to the last
// successfully loaded value (or "" before the first success).
func NewFilePrompt(load func() (string, error)) *FilePrompt {
	return &FilePrompt{load: load}
}

func (p *FilePrompt) SystemPrompt() string {
	text, err := p.load()
	if err != nil {
		return p.last
	}
	p.last = text
	return text
}

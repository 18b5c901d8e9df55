package jsontext

// Option configures indexing, parsing and building.
type Option func(*config)

// Format controls how builders render text.
type Format struct {
	Indent     string
	Newline    string
	QuoteKeys  bool
	QuoteChar  byte
	SpaceAfter bool
}

type config struct {
	comments []CommentSpan
	format   Format
}

func defaultConfig() config {
	return config{
		format: Format{
			QuoteKeys: true,
			QuoteChar: '"',
		},
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.format.Indent != "" && cfg.format.Newline == "" {
		cfg.format.Newline = "\n"
	}
	return cfg
}

// WithCommentSpan skips text between start and end while indexing.
func WithCommentSpan(start, end string) Option {
	return func(cfg *config) {
		if start == "" {
			return
		}
		cfg.comments = append(cfg.comments, CommentSpan{Start: start, End: end})
	}
}

// WithIndent renders builder output with one indent per nesting level.
func WithIndent(indent string) Option {
	return func(cfg *config) {
		cfg.format.Indent = indent
	}
}

// WithNewline sets the line terminator used between builder items.
func WithNewline(newline string) Option {
	return func(cfg *config) {
		cfg.format.Newline = newline
	}
}

// WithUnquotedKeys writes identifier-safe document keys without quotes.
func WithUnquotedKeys() Option {
	return func(cfg *config) {
		cfg.format.QuoteKeys = false
	}
}

// WithSingleQuotes quotes strings and keys with ' instead of ".
func WithSingleQuotes() Option {
	return func(cfg *config) {
		cfg.format.QuoteChar = '\''
	}
}

// WithSpaceAfterSeparators writes a space after ':' and ',' in compact output.
func WithSpaceAfterSeparators() Option {
	return func(cfg *config) {
		cfg.format.SpaceAfter = true
	}
}

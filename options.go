package stratabase

// WithEqualityTester replaces the tester deciding whether a write is a
// no-op. A nil tester restores the default.
func WithEqualityTester(equal EqualityTester) Option {
	return func(cfg *config) {
		cfg.equal = equal
	}
}

// WithEvaluator configures the evaluator used by Evaluate and Select.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithSchemaGenerator configures a custom schema generator implementation.
func WithSchemaGenerator(generator SchemaGenerator) Option {
	return func(cfg *config) {
		cfg.schemaGenerator = generator
	}
}

func (s *Stratabase) evaluatorLogger() EvaluatorLogger {
	if s.cfg.logger != nil {
		return s.cfg.logger
	}
	return noopEvaluatorLogger{}
}

func (s *Stratabase) schemaGenerator() SchemaGenerator {
	if s.cfg.schemaGenerator != nil {
		return s.cfg.schemaGenerator
	}
	return DefaultSchemaGenerator()
}

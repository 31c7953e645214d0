package config

// BotConfig seeds one bot's drive monitor at process startup. This is a
// static bootstrap list, distinct from the per-bot runtime rows a bot's
// own .gbot/config.csv writes into the C10 config store once the drive
// monitor is running; nothing else in this package knows a bot's ID
// until it appears here.
type BotConfig struct {
	ID     string `yaml:"id"`
	Bucket string `yaml:"bucket"`
}

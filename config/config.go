package config

import "time"

type AppConfig struct {
	APIPort   string `env:"PORT,required" envDefault:"12222"`
	APIKey    string `env:"API_KEY,required"`
	AppSource string `env:"APP_SOURCE" envDefault:"inboxsync"`
	PodName   string `env:"POD_NAME" envDefault:"local"`
	Namespace string `env:"POD_NAMESPACE"`
}

type DatabaseConfig struct {
	Host            string `env:"INBOXSYNC_POSTGRES_HOST,required"`
	Port            string `env:"INBOXSYNC_POSTGRES_PORT,required"`
	User            string `env:"INBOXSYNC_POSTGRES_USER,required"`
	DBName          string `env:"INBOXSYNC_POSTGRES_DB_NAME,required"`
	Password        string `env:"INBOXSYNC_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"INBOXSYNC_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"INBOXSYNC_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"INBOXSYNC_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"INBOXSYNC_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"INBOXSYNC_POSTGRES_SSL_MODE" envDefault:"require"`
}

type GmailConfig struct {
	ClientID     string `env:"GMAIL_CLIENT_ID"`
	ClientSecret string `env:"GMAIL_CLIENT_SECRET"`
	RedirectURL  string `env:"GMAIL_REDIRECT_URL"`
	// Endpoint overrides the Gmail API base path, used against emulators.
	Endpoint       string        `env:"GMAIL_API_ENDPOINT"`
	RequestTimeout time.Duration `env:"GMAIL_REQUEST_TIMEOUT" envDefault:"30s"`
	BreakerTimeout time.Duration `env:"GMAIL_BREAKER_TIMEOUT" envDefault:"30s"`
}

type SyncConfig struct {
	BackfillConcurrency int      `env:"SYNC_BACKFILL_CONCURRENCY" envDefault:"20"`
	BackfillPageSize    int64    `env:"SYNC_BACKFILL_PAGE_SIZE" envDefault:"500"`
	RecentThreadCount   int64    `env:"SYNC_RECENT_THREAD_COUNT" envDefault:"10"`
	MaxWindows          int      `env:"SYNC_MAX_WINDOWS" envDefault:"52"`
	FetchConcurrency    int      `env:"SYNC_FETCH_CONCURRENCY" envDefault:"5"`
	IgnoredLabels       []string `env:"SYNC_IGNORED_LABELS" envDefault:"CATEGORY_PROMOTIONS,CATEGORY_UPDATES,CATEGORY_FORUMS,CATEGORY_SOCIAL"`
	EmbeddingTransport  string   `env:"SYNC_EMBEDDING_TRANSPORT" envDefault:"rabbitmq"`
}

type RabbitMQConfig struct {
	URL string `env:"RABBITMQ_URL"`
}

type NatsConfig struct {
	URL    string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	Stream string `env:"NATS_EMBEDDING_STREAM" envDefault:"INBOXSYNC_EMBEDDINGS"`
}

type PubSubConfig struct {
	Enabled         bool   `env:"GMAIL_PUBSUB_ENABLED" envDefault:"false"`
	ProjectID       string `env:"GMAIL_PUBSUB_PROJECT_ID"`
	SubscriptionID  string `env:"GMAIL_PUBSUB_SUBSCRIPTION_ID" envDefault:"inboxsync-gmail-push"`
	CredentialsFile string `env:"GMAIL_PUBSUB_CREDENTIALS_FILE"`
}

type R2StorageConfig struct {
	Enabled                 bool   `env:"CLOUDFLARE_R2_ENABLED" envDefault:"false"`
	AccountID               string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID             string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	AccessKeySecret         string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET"`
	MessageAttachmentBucket string `env:"BUCKET_NAME_MESSAGE_ATTACHMENT" envDefault:"attachments"`
}

package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Incremental sync of active mail accounts, every 5 minutes
	CronScheduleIncrementalSync string `env:"CRON_SCHEDULE_INCREMENTAL_SYNC" envDefault:"0 */5 * * * *"`
	// Dangling reference cleanup, daily at 03:00
	CronScheduleDanglingReferenceCleanup string `env:"CRON_SCHEDULE_DANGLING_REFERENCE_CLEANUP" envDefault:"0 0 3 * * *"`
	// Dangling references older than this many days are dropped
	DanglingReferenceRetentionDays int `env:"DANGLING_REFERENCE_RETENTION_DAYS" envDefault:"30"`
}

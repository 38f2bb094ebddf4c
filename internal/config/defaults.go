package config

const (
	defaultWorkDir                 = "~/.local/share/shipyard/work"
	defaultOutputDir               = "~/.local/share/shipyard/exports"
	defaultLogDir                  = "~/.local/share/shipyard/logs"
	defaultCatalogDir              = "~/.local/share/shipyard/catalog"
	defaultHTTPTimeoutSeconds      = 60
	defaultMaxExportSizeMB         = 10 * 1024
	defaultAssetOverheadMB         = 50
	defaultDocumentationOverheadMB = 1
	defaultThroughputMBPerSecond   = 25
	defaultMinFreeSpaceMB          = 512
	defaultNamingPattern           = "{campaign}_{name}_{version}.{format}"
	defaultMaxConcurrent           = 3
	defaultRetryAttempts           = 2
	defaultRetryDelaySeconds       = 5
	defaultSchedulerWorkers        = 2
	defaultSchedulerQueueSize      = 64
	defaultRecoveryIntervalSeconds = 30
	defaultFFmpegBinary            = "ffmpeg"
	defaultStorageProvider         = "filesystem"
	defaultPresignExpirySeconds    = 3600
	defaultFTPPort                 = 21
	defaultFTPTimeoutSeconds       = 30
	defaultEmailProvider           = "smtp"
	defaultSMTPPort                = 587
	defaultMaxAttachmentMB         = 20
	defaultEmailTimeoutSeconds     = 30
	defaultAMQPExchange            = "shipyard.events"
	defaultAMQPRoutingKey          = "export.job"
	defaultPlatformTimeoutSeconds  = 60
	defaultPlatformFailures        = 5
	defaultPlatformCooldownSeconds = 30
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		RenderSource: RenderSource{
			CatalogDir:         defaultCatalogDir,
			HTTPTimeoutSeconds: defaultHTTPTimeoutSeconds,
		},
		Export: Export{
			MaxExportSizeMB:         defaultMaxExportSizeMB,
			AssetOverheadMB:         defaultAssetOverheadMB,
			DocumentationOverheadMB: defaultDocumentationOverheadMB,
			ThroughputMBPerSecond:   defaultThroughputMBPerSecond,
			MinFreeSpaceMB:          defaultMinFreeSpaceMB,
			DefaultNamingPattern:    defaultNamingPattern,
		},
		Batch: Batch{
			MaxConcurrent:     defaultMaxConcurrent,
			RetryAttempts:     defaultRetryAttempts,
			RetryDelaySeconds: defaultRetryDelaySeconds,
		},
		Scheduler: Scheduler{
			Workers:                 defaultSchedulerWorkers,
			QueueSize:               defaultSchedulerQueueSize,
			RecoveryIntervalSeconds: defaultRecoveryIntervalSeconds,
		},
		Converter: Converter{
			Enabled:      true,
			FFmpegBinary: defaultFFmpegBinary,
		},
		Storage: Storage{
			Provider:             defaultStorageProvider,
			UseSSL:               true,
			PresignExpirySeconds: defaultPresignExpirySeconds,
		},
		FTP: FTP{
			Port:           defaultFTPPort,
			TimeoutSeconds: defaultFTPTimeoutSeconds,
		},
		Email: Email{
			Provider:        defaultEmailProvider,
			SMTPPort:        defaultSMTPPort,
			MaxAttachmentMB: defaultMaxAttachmentMB,
			TimeoutSeconds:  defaultEmailTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			AMQPExchange:   defaultAMQPExchange,
			AMQPRoutingKey: defaultAMQPRoutingKey,
		},
		PlatformAPI: PlatformAPI{
			TimeoutSeconds:   defaultPlatformTimeoutSeconds,
			FailureThreshold: defaultPlatformFailures,
			CooldownSeconds:  defaultPlatformCooldownSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

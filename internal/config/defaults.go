package config

const (
	defaultConfigPath          = "~/.config/rollcall/config.toml"
	defaultLogDir              = "~/.local/share/rollcall"
	defaultAPIBind             = "127.0.0.1:7491"
	defaultTokenCookie         = "csrftoken"
	defaultTokenHeader         = "X-CSRFToken"
	defaultFacing              = "environment"
	defaultDevice              = "/dev/video0"
	defaultFPS                 = 10
	defaultBoxSize             = 250
	defaultDecoderBinary       = "zbarcam"
	defaultStartSettleMillis   = 750
	defaultDedupCooldownMillis = 3500
	defaultResetDelayMillis    = 900
	defaultNotifyTimeout       = 10
	defaultNotifyDedupSeconds  = 600
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Endpoint: Endpoint{
			TokenCookie: defaultTokenCookie,
			TokenHeader: defaultTokenHeader,
			SendCookies: true,
		},
		Camera: Camera{
			Facing:            defaultFacing,
			Device:            defaultDevice,
			FPS:               defaultFPS,
			BoxWidth:          defaultBoxSize,
			BoxHeight:         defaultBoxSize,
			DecoderBinary:     defaultDecoderBinary,
			StartSettleMillis: defaultStartSettleMillis,
		},
		Session: Session{
			DedupCooldownMillis: defaultDedupCooldownMillis,
			ResetDelayMillis:    defaultResetDelayMillis,
		},
		Journal: Journal{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyTimeout,
			Marked:             false,
			Rejected:           true,
			DedupWindowSeconds: defaultNotifyDedupSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

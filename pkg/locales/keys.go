package locales

// Message IDs resolved through the i18n bundle in internal/locales.
const (
	MsgNotifyTitle        = "NotifyTitle"
	MsgNotifyBodyFallback = "NotifyBodyFallback"
)

package bot

// Command names.
const (
	CmdStart      = "start"
	CmdHelp       = "help"
	CmdSetGroup   = "setgroup"
	CmdUnsetGroup = "unsetgroup"
	CmdStatus     = "status"
	CmdRecent     = "recent"
)

// Attachment kinds.
const (
	KindPhoto    = "photo"
	KindDocument = "document"
)

// Log field names.
const (
	LogFieldChatID   = "chat_id"
	LogFieldUserID   = "user_id"
	LogFieldJobID    = "job_id"
	LogFieldUpdateID = "update_id"
)

// Error message formats.
const (
	ErrSendMessage = "failed to send message to chat %d: %w"
)

const (
	recentCardsLimit = 5
	statusWindow     = 24 // hours
	dateTimeFormat   = "2006-01-02 15:04:05"
	imageMimePrefix  = "image/"
)

// User-facing texts.
const (
	msgHelp = "Envíame una captura de una tarjeta de Duolingo y reenviaré la frase en inglés y su traducción al español.\n\n" +
		"<b>Comandos</b>\n" +
		"/setgroup - usar este chat como grupo destino\n" +
		"/unsetgroup - dejar de reenviar a un grupo\n" +
		"/status - estado del bot\n" +
		"/recent - últimas tarjetas reenviadas"
	msgTargetSet        = "✅ Grupo destino configurado: <code>%d</code>"
	msgTargetUnset      = "Grupo destino eliminado. Las tarjetas solo se responden en el chat de origen."
	msgHistoryDisabled  = "El historial no está habilitado."
	msgHistoryEmpty     = "Todavía no se ha reenviado ninguna tarjeta."
	msgHistoryError     = "❌ Error leyendo el historial: %s"
	msgNoTarget         = "ninguno"
	msgStatusHeader     = "<b>Estado</b>\n"
	msgStatusTarget     = "Grupo destino: %s\n"
	msgStatusEngine     = "Motor OCR: <code>%s</code>%s\n"
	msgStatusBreaker    = " (circuito %s)"
	msgStatusStarted    = "Activo desde: %s UTC (%s)\n"
	msgStatusCards      = "Tarjetas en las últimas %d h: <code>%d</code>\n"
	msgStatusCardsError = "Tarjetas: error (%s)\n"
)

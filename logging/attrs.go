package logging

import (
	"log/slog"
	"time"
)

// --- ERROR ---

func Err(err error) slog.Attr {
	return slog.Any("error", err)
}

// --- TRANSPORT ---

func ChatID(id int64) slog.Attr {
	return slog.Int64("chat_id", id)
}

func MessageID(id int64) slog.Attr {
	return slog.Int64("message_id", id)
}

func UserID(id int64) slog.Attr {
	return slog.Int64("user_id", id)
}

func UserName(name string) slog.Attr {
	return slog.String("user_name", name)
}

func BotName(name string) slog.Attr {
	return slog.String("bot_name", name)
}

func Denial(reason string) slog.Attr {
	return slog.String("denial", reason)
}

func Chunks(n int) slog.Attr {
	return slog.Int("chunks", n)
}

// --- HISTORY ---

func HistoryLen(n int) slog.Attr {
	return slog.Int("history_len", n)
}

func Chats(n int) slog.Attr {
	return slog.Int("chats", n)
}

// --- SECRET / CONFIG ---

func EnvVar(s string) slog.Attr {
	return slog.String("env_var", s)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func ConfigType(t string) slog.Attr {
	return slog.String("config_type", t)
}

func Addr(addr string) slog.Attr {
	return slog.String("addr", addr)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// --- PIPELINE ---

func Invocation(id string) slog.Attr {
	return slog.String("invocation", id)
}

func Step(name string) slog.Attr {
	return slog.String("step", name)
}

func Model(name string) slog.Attr {
	return slog.String("model", name)
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func Duration(d time.Duration) slog.Attr {
	return slog.String("duration", d.String())
}

func Category(c string) slog.Attr {
	return slog.String("category", c)
}

func RawResponse(s string) slog.Attr {
	return slog.String("raw_response", s)
}

// --- KNOWLEDGE ---

func Files(n int) slog.Attr {
	return slog.Int("files", n)
}

func Entries(n int) slog.Attr {
	return slog.Int("entries", n)
}

func Lang(code string) slog.Attr {
	return slog.String("lang", code)
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"campus_chat/internal/chat/app"
	"campus_chat/internal/chat/domain"
	"campus_chat/internal/chat/repository"
	"campus_chat/pkg/config"
	"campus_chat/pkg/logger"

	"go.uber.org/zap"
)

const usage = `commands:
  /list           list conversations
  /open <chatId>  open a conversation
  /item <itemId>  chat about an item
  /file <path>    send an image or file (max 5 MiB)
  /reconnect      reconnect the live connection
  /quit           exit
anything else is sent as a text message`

func main() {
	logger.Log = logger.NewFile(config.EnvConfig.ChatClient, config.EnvConfig.ChatClientLogPath)
	logger.Log.SetDebugMode(config.IsLocal())
	defer logger.Log.Sync()
	cfg := config.MustLoadConfig[config.ChatClient](config.EnvConfig.ChatClient, config.EnvConfig.ChatClientYAMLPath).WithDefaults()

	out := newTerminal(os.Stdout)
	session := app.NewSession(
		repository.NewHTTPStore(cfg.BaseURL, cfg.Token, cfg.RequestTimeout),
		repository.NewWebsocketDialer(cfg.SocketURL, cfg.HandshakeTimeout, cfg.PingInterval),
		out,
	)
	defer session.Close()
	session.Stream().OnChange(out.render)

	ctx := context.Background()
	if err := session.Start(ctx, cfg.Token); err != nil {
		out.println("offline: history is read-only until /reconnect succeeds")
	}
	out.println(usage)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return
		}
		run(ctx, session, out, line)
	}
}

func run(ctx context.Context, session *app.Session, out *terminal, line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/list":
		convs, err := session.Conversations(ctx)
		if err != nil {
			return
		}
		me := session.View().User.ID
		for _, c := range convs {
			title := c.ItemRef()
			if c.Item != nil && c.Item.Title != "" {
				title = c.Item.Title
			}
			who, _ := c.Counterpart(me)
			out.println(fmt.Sprintf("%s  %-20s  %-24s  %s", c.ID, title, who.DisplayName(), c.Preview()))
		}

	case "/open":
		if arg == "" {
			out.println(usage)
			return
		}
		_ = session.OpenConversation(ctx, arg)

	case "/item":
		if arg == "" {
			out.println(usage)
			return
		}
		res, err := session.OpenItem(ctx, arg)
		if err != nil {
			return
		}
		if res.Redirected() {
			out.println("already chatting about this item, opened " + res.ConversationID())
		} else if item := res.Item(); item != nil {
			out.println(fmt.Sprintf("new chat about %q (%.2f), your first message starts it", item.Title, item.Price))
		}

	case "/file":
		file, err := readUpload(arg)
		if err != nil {
			out.println("cannot read file: " + err.Error())
			return
		}
		_ = session.SendAttachment(ctx, file)

	case "/reconnect":
		if err := session.Reconnect(ctx); err == nil {
			out.println("connected")
		}

	case "/help":
		out.println(usage)

	default:
		if strings.HasPrefix(cmd, "/") {
			out.println(usage)
			return
		}
		_ = session.SendText(line)
	}
}

func readUpload(path string) (domain.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Upload{}, err
	}
	defer f.Close()

	// 多讀一個 byte, 超過上限交給 uploader 回報
	data, err := io.ReadAll(io.LimitReader(f, domain.MaxAttachmentSize+1))
	if err != nil {
		return domain.Upload{}, err
	}

	logger.Log.Debug("read upload", zap.String("path", path), zap.Int("size", len(data)))
	return domain.Upload{
		FileName: filepath.Base(path),
		MIMEType: mimeType(path, data),
		Data:     data,
	}, nil
}

func mimeType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"guess_game/internal/domain"
	"guess_game/internal/logger"
	"guess_game/internal/repository"
	"guess_game/internal/service"

	"github.com/ethereum/go-ethereum/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const (
	recentGamesLimit = 10
	auditLimit       = 15
)

type StatsSource interface {
	Stats(ctx context.Context) (repository.GameStats, error)
}

type GameReader interface {
	Get(ctx context.Context, id uuid.UUID) (*service.GameView, error)
	List(ctx context.Context, status string, limit int) ([]service.GameView, error)
}

type Ledger interface {
	GetBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	Credit(ctx context.Context, addr common.Address, amount *big.Int, meta map[string]interface{}) (*big.Int, error)
}

// Auditor records admin actions and serves the /audit command.
type Auditor interface {
	Log(ctx context.Context, address, action, category string, details map[string]interface{})
	Recent(ctx context.Context, f domain.AuditFilter, limit int) ([]*domain.AuditLog, error)
}

// AdminBot answers admin commands over Telegram and pushes settlement
// summaries to the admin chats.
type AdminBot struct {
	bot      *tgbotapi.BotAPI
	stats    StatsSource
	games    GameReader
	ledger   Ledger
	audit    Auditor
	adminIDs []int64
	stopCh   chan struct{}
	wg       sync.WaitGroup
	log      *slog.Logger
}

func NewAdminBot(token string, stats StatsSource, games GameReader, ledger Ledger, adminIDs []int64) (*AdminBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newAdminBot(stats, games, ledger, adminIDs)
	b.bot = api
	b.log.Info("admin bot authorized", "username", api.Self.UserName)
	return b, nil
}

func newAdminBot(stats StatsSource, games GameReader, ledger Ledger, adminIDs []int64) *AdminBot {
	return &AdminBot{
		stats:    stats,
		games:    games,
		ledger:   ledger,
		adminIDs: adminIDs,
		stopCh:   make(chan struct{}),
		log:      logger.With("component", "admin_bot"),
	}
}

func (b *AdminBot) SetAuditor(a Auditor) { b.audit = a }

// Start runs the update loop until Stop.
func (b *AdminBot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.bot.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if !b.accepts(update) {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(update.Message)
		}
	}
}

// Stop waits up to 10s for running handlers.
func (b *AdminBot) Stop() {
	b.log.Info("stopping admin bot...")
	close(b.stopCh)
	b.bot.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("admin bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("admin bot shutdown timeout, some handlers may not have completed")
	}
}

// accepts filters updates down to commands sent by an admin. Channel posts
// and some service messages carry no sender.
func (b *AdminBot) accepts(update tgbotapi.Update) bool {
	msg := update.Message
	if msg == nil || msg.From == nil || !msg.IsCommand() {
		return false
	}
	return b.isAdmin(msg.From.ID)
}

func (b *AdminBot) isAdmin(userID int64) bool {
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply := tgbotapi.NewMessage(msg.Chat.ID, b.respond(ctx, msg.From.ID, msg.Command(), msg.CommandArguments()))
	reply.ParseMode = "HTML"
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.bot.Send(reply); err != nil {
		b.log.Error("error sending message", "error", err)
	}
}

func (b *AdminBot) respond(ctx context.Context, adminID int64, command, args string) string {
	switch command {
	case "start", "help":
		return helpMessage
	case "stats":
		return b.handleStats(ctx)
	case "games":
		return b.handleRecentGames(ctx)
	case "game":
		return b.handleGame(ctx, args)
	case "balance":
		return b.handleBalance(ctx, args)
	case "credit":
		return b.handleCredit(ctx, adminID, args)
	case "audit":
		return b.handleAudit(ctx, args)
	default:
		return "Unknown command. Use /help for the list."
	}
}

const helpMessage = `<b>Admin commands</b>

/stats - open and closed games, wei in escrow
/games - recently created open games
/game &lt;id&gt; - game details and settlement
/balance &lt;address&gt; - account balance
/credit &lt;address&gt; &lt;eth&gt; - credit an account
/audit &lt;address|category&gt; - recent audit entries`

func (b *AdminBot) handleStats(ctx context.Context) string {
	s, err := b.stats.Stats(ctx)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	return fmt.Sprintf(`<b>Platform stats</b>

Open games: %d
Closed games: %d
In escrow: %s ETH`,
		s.Open, s.Closed, domain.FormatEther(s.Escrowed))
}

func (b *AdminBot) handleRecentGames(ctx context.Context) string {
	games, err := b.games.List(ctx, domain.GameStatusOpen, recentGamesLimit)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(games) == 0 {
		return "No open games."
	}

	var sb strings.Builder
	sb.WriteString("<b>Open games</b>\n\n")
	for _, g := range games {
		fmt.Fprintf(&sb, "<code>%s</code> %d/%d players, fee %s ETH\n",
			g.ID, g.PlayersCount, g.RequiredPlayers, weiToEther(g.EntranceFee))
	}
	return sb.String()
}

func (b *AdminBot) handleGame(ctx context.Context, args string) string {
	id, err := uuid.Parse(strings.TrimSpace(args))
	if err != nil {
		return "Usage: /game &lt;id&gt;"
	}

	g, err := b.games.Get(ctx, id)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Game</b> <code>%s</code>\n\n", g.ID)
	fmt.Fprintf(&sb, "Host: <code>%s</code>\n", g.Host.Hex())
	fmt.Fprintf(&sb, "Status: %s\n", g.Status)
	fmt.Fprintf(&sb, "Players: %d/%d\n", g.PlayersCount, g.RequiredPlayers)
	fmt.Fprintf(&sb, "Entrance fee: %s ETH\n", weiToEther(g.EntranceFee))
	fmt.Fprintf(&sb, "Balance: %s ETH\n", weiToEther(g.Balance))
	if g.Settlement != nil {
		sb.WriteString("\n")
		sb.WriteString(settlementSummary(g.Settlement))
	}
	return sb.String()
}

func (b *AdminBot) handleBalance(ctx context.Context, args string) string {
	addr := strings.TrimSpace(args)
	if !common.IsHexAddress(addr) {
		return "Usage: /balance &lt;address&gt;"
	}

	bal, err := b.ledger.GetBalance(ctx, common.HexToAddress(addr))
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("<code>%s</code>: %s ETH", common.HexToAddress(addr).Hex(), domain.FormatEther(bal))
}

func (b *AdminBot) handleCredit(ctx context.Context, adminID int64, args string) string {
	parts := strings.Fields(args)
	if len(parts) != 2 || !common.IsHexAddress(parts[0]) {
		return "Usage: /credit &lt;address&gt; &lt;eth&gt;"
	}
	target := common.HexToAddress(parts[0])

	amount, err := domain.ParseEther(parts[1])
	if err != nil || amount.Sign() <= 0 {
		return "Amount must be a positive ETH value with at most 18 decimals."
	}

	bal, err := b.ledger.Credit(ctx, target, amount, map[string]interface{}{"telegram_admin": adminID})
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if b.audit != nil {
		b.audit.Log(ctx, target.Hex(), domain.AuditActionAdminCredit, domain.AuditCategoryAdmin, map[string]interface{}{
			"telegram_admin": adminID,
			"amount":         amount.String(),
			"via":            "telegram",
		})
	}

	b.log.Info("account credited", "admin_id", adminID, "address", target.Hex(), "amount", amount.String())
	return fmt.Sprintf("Credited %s ETH to <code>%s</code>\nNew balance: %s ETH",
		domain.FormatEther(amount), target.Hex(), domain.FormatEther(bal))
}

func (b *AdminBot) handleAudit(ctx context.Context, args string) string {
	if b.audit == nil {
		return "Audit log is not configured."
	}

	arg := strings.TrimSpace(args)
	var f domain.AuditFilter
	switch {
	case common.IsHexAddress(arg):
		f.Address = common.HexToAddress(arg).Hex()
	case domain.IsAuditCategory(arg):
		f.Category = arg
	default:
		return "Usage: /audit &lt;address|auth|game|balance|admin&gt;"
	}

	entries, err := b.audit.Recent(ctx, f, auditLimit)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(entries) == 0 {
		return "No audit entries."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Audit</b> %s\n\n", html.EscapeString(arg))
	for _, e := range entries {
		who := e.Address
		if common.IsHexAddress(who) {
			who = shortAddress(common.HexToAddress(who))
		}
		fmt.Fprintf(&sb, "%s %s %s", e.CreatedAt.UTC().Format("01-02 15:04"), html.EscapeString(e.Action), html.EscapeString(who))
		if id, ok := e.Details["game_id"].(string); ok {
			fmt.Fprintf(&sb, " <code>%s</code>", html.EscapeString(id))
		}
		if amount, ok := e.Details["amount"].(string); ok {
			fmt.Fprintf(&sb, " %s ETH", weiToEther(amount))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// NotifySettlement sends a settlement summary to every admin chat.
func (b *AdminBot) NotifySettlement(g service.GameView) {
	if g.Settlement == nil {
		return
	}

	text := fmt.Sprintf("<b>Game settled</b> <code>%s</code>\n\n%s", g.ID, settlementSummary(g.Settlement))
	for _, adminID := range b.adminIDs {
		msg := tgbotapi.NewMessage(adminID, text)
		msg.ParseMode = "HTML"
		if _, err := b.bot.Send(msg); err != nil {
			b.log.Error("failed to notify admin", "admin_id", adminID, "error", err)
		}
	}
}

func settlementSummary(s *service.SettlementView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Number: %d\n", s.Number)
	fmt.Fprintf(&sb, "Pool: %s ETH\n", weiToEther(s.Pool))
	fmt.Fprintf(&sb, "Winning distance: %d\n", s.Distance)
	for _, p := range s.Payouts {
		fmt.Fprintf(&sb, "%s guessed %d, won %s ETH\n",
			html.EscapeString(shortAddress(p.Player)), p.Number, weiToEther(p.Amount))
	}
	return sb.String()
}

func shortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}

func weiToEther(wei string) string {
	v, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return wei
	}
	return domain.FormatEther(v)
}


package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
	"github.com/character-hunt/internal/storage"
)

func (b *Bot) handleChatter(ctx context.Context, msg *tgbotapi.Message) {
	character, err := b.game.OnMessage(ctx, msg.Chat.ID)
	if err != nil {
		// The trigger fired but nothing could spawn. Tell the chat when the
		// pool is empty; storage trouble is logged upstream and stays quiet.
		if apperrors.IsCategory(err, apperrors.CategoryNotFound) {
			b.send(tgbotapi.NewMessage(msg.Chat.ID, "No characters are available to spawn right now."))
		}
		return
	}
	if character == nil {
		return
	}

	caption := fmt.Sprintf("A wild %s appeared! %s\nCatch it with /catch <name>",
		character.Name, rarityStars(character.Rarity))

	if character.ImageRef != "" {
		photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileURL(character.ImageRef))
		photo.Caption = caption
		b.send(photo)
		return
	}
	b.send(tgbotapi.NewMessage(msg.Chat.ID, caption))
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.reply(msg, helpText)
	case "catch":
		b.cmdCatch(ctx, msg)
	case "balance":
		b.cmdBalance(ctx, msg)
	case "pay":
		b.cmdPay(ctx, msg)
	case "trade":
		b.cmdTrade(ctx, msg)
	case "confirmtrade":
		b.cmdConfirmTrade(ctx, msg)
	case "canceltrade":
		b.cmdCancelTrade(ctx, msg)
	case "gift":
		b.cmdGift(ctx, msg)
	case "confirmgift":
		b.cmdConfirmGift(ctx, msg)
	case "cancelgift":
		b.cmdCancelGift(ctx, msg)
	case "redeem":
		b.cmdRedeem(ctx, msg)
	case "createcode":
		b.cmdCreateCode(ctx, msg)
	case "addcharacter":
		b.cmdAddCharacter(ctx, msg)
	case "setrarity":
		b.cmdSetRarity(ctx, msg)
	case "catalog":
		b.cmdCatalog(ctx, msg)
	case "lock":
		b.cmdSetLocked(ctx, msg, true)
	case "unlock":
		b.cmdSetLocked(ctx, msg, false)
	case "rarity":
		b.cmdRarity(ctx, msg)
	case "threshold":
		b.cmdThreshold(ctx, msg)
	case "top":
		b.cmdTop(ctx, msg)
	case "collection":
		b.cmdCollection(ctx, msg)
	}
}

const helpText = `Character hunt commands:
/catch <name> - catch the spawned character
/balance - your coin balance
/pay <amount> - pay coins (reply to the recipient)
/trade <your instance> <their instance> - propose a trade (reply to them)
/confirmtrade, /canceltrade - settle a trade (reply to the proposer)
/gift <instance> - offer a character (reply to the recipient)
/confirmgift, /cancelgift - settle your gift (reply to the recipient)
/redeem <code> - redeem a code
/top [global] - leaderboard
/collection - your characters
/catalog - catalog size`

func (b *Bot) cmdCatch(ctx context.Context, msg *tgbotapi.Message) {
	result, err := b.game.Guess(ctx, msg.Chat.ID, msg.From.ID, msg.CommandArguments())
	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}

	b.reply(msg, fmt.Sprintf("%s caught %s! %s\n+%d coins, balance: %d",
		displayName(msg.From), result.Entry.Name, rarityStars(result.Entry.Rarity),
		result.Reward, result.NewBalance))
}

func (b *Bot) cmdBalance(ctx context.Context, msg *tgbotapi.Message) {
	balance, err := b.game.Balance(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, fmt.Sprintf("Balance: %d coins", balance))
}

func (b *Bot) cmdPay(ctx context.Context, msg *tgbotapi.Message) {
	receiver := repliedUser(msg)
	if receiver == nil {
		b.reply(msg, "reply to the recipient's message with /pay <amount>")
		return
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.reply(msg, "usage: /pay <amount>")
		return
	}

	payment, perr := b.payments.Propose(ctx, msg.From.ID, receiver.ID, amount)
	if perr != nil {
		b.reply(msg, apperrors.UserMessage(perr))
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID,
		fmt.Sprintf("Pay %d coins to %s?", amount, displayName(receiver)))
	out.ReplyToMessageID = msg.MessageID
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Confirm", "pay:c:"+payment.Token),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "pay:x:"+payment.Token),
		),
	)
	b.send(out)
}

func (b *Bot) cmdTrade(ctx context.Context, msg *tgbotapi.Message) {
	counterparty := repliedUser(msg)
	if counterparty == nil {
		b.reply(msg, "reply to your trade partner with /trade <your instance> <their instance>")
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.reply(msg, "usage: /trade <your instance> <their instance>")
		return
	}

	trade, err := b.trades.ProposeTrade(ctx, msg.From.ID, counterparty.ID, args[0], args[1])
	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}

	b.reply(msg, fmt.Sprintf(
		"Trade proposed to %s: %s for %s. They have %s to /confirmtrade or /canceltrade (reply to you).",
		displayName(counterparty), trade.OfferedInstance, trade.RequestedInstance,
		models.TradeTTL.String()))
}

func (b *Bot) cmdConfirmTrade(ctx context.Context, msg *tgbotapi.Message) {
	other := repliedUser(msg)
	if other == nil {
		b.reply(msg, "reply to the trade proposer with /confirmtrade")
		return
	}

	trade, err := b.trades.ConfirmTrade(ctx, msg.From.ID, other.ID)
	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, fmt.Sprintf("Trade settled: %s went to %s, %s went to %s.",
		trade.OfferedInstance, displayName(msg.From),
		trade.RequestedInstance, displayName(other)))
}

func (b *Bot) cmdCancelTrade(ctx context.Context, msg *tgbotapi.Message) {
	other := repliedUser(msg)
	if other == nil {
		b.reply(msg, "reply to the trade proposer with /canceltrade")
		return
	}

	if err := b.trades.CancelTrade(ctx, msg.From.ID, other.ID); err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, "Trade cancelled.")
}

func (b *Bot) cmdGift(ctx context.Context, msg *tgbotapi.Message) {
	receiver := repliedUser(msg)
	if receiver == nil {
		b.reply(msg, "reply to the recipient with /gift <instance>")
		return
	}

	instance := strings.TrimSpace(msg.CommandArguments())
	if instance == "" {
		b.reply(msg, "usage: /gift <instance>")
		return
	}

	if _, err := b.trades.ProposeGift(ctx, msg.From.ID, receiver.ID, instance); err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, fmt.Sprintf("Gift offered to %s. Confirm with /confirmgift (reply to them) within %s.",
		displayName(receiver), models.GiftTTL.String()))
}

func (b *Bot) cmdConfirmGift(ctx context.Context, msg *tgbotapi.Message) {
	receiver := repliedUser(msg)
	if receiver == nil {
		b.reply(msg, "reply to the recipient with /confirmgift")
		return
	}

	if _, err := b.trades.ConfirmGift(ctx, msg.From.ID, receiver.ID); err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, fmt.Sprintf("Gift delivered to %s.", displayName(receiver)))
}

func (b *Bot) cmdCancelGift(ctx context.Context, msg *tgbotapi.Message) {
	receiver := repliedUser(msg)
	if receiver == nil {
		b.reply(msg, "reply to the recipient with /cancelgift")
		return
	}

	if err := b.trades.CancelGift(ctx, msg.From.ID, receiver.ID); err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, "Gift withdrawn.")
}

func (b *Bot) cmdRedeem(ctx context.Context, msg *tgbotapi.Message) {
	code := strings.ToUpper(strings.TrimSpace(msg.CommandArguments()))
	if code == "" {
		b.reply(msg, "usage: /redeem <code>")
		return
	}

	result, err := b.redeems.Redeem(ctx, msg.From.ID, code)
	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}

	switch result.Code.Kind {
	case models.CodeKindCurrency:
		b.reply(msg, fmt.Sprintf("Redeemed! +%d coins, balance: %d",
			result.Code.Amount, result.NewBalance))
	case models.CodeKindCharacter:
		note := ""
		if result.DuplicateOwned {
			note = " (you already had one)"
		}
		b.reply(msg, fmt.Sprintf("Redeemed! %s %s joined your collection%s",
			result.Entry.Name, rarityStars(result.Entry.Rarity), note))
	}
}

func (b *Bot) cmdCreateCode(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From) {
		b.reply(msg, apperrors.UserMessage(apperrors.NewNotAdminError()))
		return
	}

	args := strings.Fields(msg.CommandArguments())
	usage := "usage: /createcode currency <amount> [max uses] | /createcode character <id> [max uses]"
	if len(args) < 2 {
		b.reply(msg, usage)
		return
	}

	maxUses := 0
	if len(args) >= 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			b.reply(msg, usage)
			return
		}
		maxUses = n
	}

	var code *models.RedeemCode
	var err error
	switch args[0] {
	case "currency":
		amount, aerr := strconv.ParseInt(args[1], 10, 64)
		if aerr != nil {
			b.reply(msg, usage)
			return
		}
		code, err = b.redeems.CreateCurrencyCode(ctx, msg.From.ID, amount, maxUses)
	case "character":
		code, err = b.redeems.CreateCharacterCode(ctx, msg.From.ID, args[1], maxUses)
	default:
		b.reply(msg, usage)
		return
	}

	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, fmt.Sprintf("Code created: %s", code.Code))
}

func (b *Bot) cmdAddCharacter(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From) {
		b.reply(msg, apperrors.UserMessage(apperrors.NewNotAdminError()))
		return
	}

	// Semicolon-separated because names and series carry spaces
	parts := strings.Split(msg.CommandArguments(), ";")
	if len(parts) < 3 {
		b.reply(msg, "usage: /addcharacter <name>;<series>;<rarity 1-5>[;<image url>]")
		return
	}
	name := strings.TrimSpace(parts[0])
	series := strings.TrimSpace(parts[1])
	tier, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || tier < int(models.RarityCommon) || tier > int(models.RarityLegendary) {
		b.reply(msg, "rarity must be 1-5")
		return
	}
	imageRef := ""
	if len(parts) >= 4 {
		imageRef = strings.TrimSpace(parts[3])
	}

	if existing, err := b.characters.GetByName(ctx, name); err == nil {
		b.reply(msg, fmt.Sprintf("A character named %s already exists (%s).", existing.Name, existing.ID))
		return
	} else if !apperrors.IsCategory(err, apperrors.CategoryNotFound) {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}

	c := &models.Character{
		ID:       uuid.New().String(),
		Name:     name,
		Series:   series,
		Rarity:   models.Rarity(tier),
		ImageRef: imageRef,
	}
	if err := b.characters.Create(ctx, c); err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, fmt.Sprintf("Added %s %s (%s) with id %s", rarityStars(c.Rarity), c.Name, c.Series, c.ID))
}

func (b *Bot) cmdSetRarity(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From) {
		b.reply(msg, apperrors.UserMessage(apperrors.NewNotAdminError()))
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.reply(msg, "usage: /setrarity <character id> <1-5>")
		return
	}
	tier, err := strconv.Atoi(args[1])
	if err != nil || tier < int(models.RarityCommon) || tier > int(models.RarityLegendary) {
		b.reply(msg, "usage: /setrarity <character id> <1-5>")
		return
	}

	if err := b.characters.SetRarity(ctx, args[0], models.Rarity(tier)); err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, fmt.Sprintf("Rarity updated to %s.", rarityStars(models.Rarity(tier))))
}

func (b *Bot) cmdCatalog(ctx context.Context, msg *tgbotapi.Message) {
	count, err := b.characters.Count(ctx)
	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, fmt.Sprintf("The catalog holds %d characters.", count))
}

func (b *Bot) cmdSetLocked(ctx context.Context, msg *tgbotapi.Message, locked bool) {
	if !b.isAdmin(msg.From) {
		b.reply(msg, apperrors.UserMessage(apperrors.NewNotAdminError()))
		return
	}

	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" {
		b.reply(msg, fmt.Sprintf("usage: /%s <character id>", msg.Command()))
		return
	}

	if err := b.characters.SetLocked(ctx, id, locked); err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	if locked {
		b.reply(msg, "Character locked out of spawns.")
	} else {
		b.reply(msg, "Character back in the spawn pool.")
	}
}

func (b *Bot) cmdRarity(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From) {
		b.reply(msg, apperrors.UserMessage(apperrors.NewNotAdminError()))
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.reply(msg, "usage: /rarity <1-5> on|off")
		return
	}

	tier, err := strconv.Atoi(args[0])
	if err != nil || tier < int(models.RarityCommon) || tier > int(models.RarityLegendary) {
		b.reply(msg, "usage: /rarity <1-5> on|off")
		return
	}
	rarity := models.Rarity(tier)

	settings, err := b.settings.Get(ctx, msg.Chat.ID)
	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}

	switch args[1] {
	case "on":
		kept := settings.DisabledRarities[:0]
		for _, d := range settings.DisabledRarities {
			if d != rarity {
				kept = append(kept, d)
			}
		}
		settings.DisabledRarities = kept
	case "off":
		if !settings.RarityDisabled(rarity) {
			settings.DisabledRarities = append(settings.DisabledRarities, rarity)
		}
	default:
		b.reply(msg, "usage: /rarity <1-5> on|off")
		return
	}

	if err := b.settings.Upsert(ctx, settings); err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, fmt.Sprintf("Rarity %d spawns turned %s for this chat.", tier, args[1]))
}

func (b *Bot) cmdThreshold(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From) {
		b.reply(msg, apperrors.UserMessage(apperrors.NewNotAdminError()))
		return
	}

	n, err := strconv.Atoi(strings.TrimSpace(msg.CommandArguments()))
	if err != nil || n <= 0 {
		b.reply(msg, "usage: /threshold <messages per spawn>")
		return
	}

	settings, err := b.settings.Get(ctx, msg.Chat.ID)
	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	settings.SpawnThreshold = n

	if err := b.settings.Upsert(ctx, settings); err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	b.reply(msg, fmt.Sprintf("Spawn threshold set to %d messages.", n))
}

func (b *Bot) cmdTop(ctx context.Context, msg *tgbotapi.Message) {
	global := strings.EqualFold(strings.TrimSpace(msg.CommandArguments()), "global")

	var entries []storage.LeaderboardEntry
	var err error
	var title string
	if global {
		title = "Global top catchers"
		entries, err = b.game.TopGlobal(ctx, 10)
	} else {
		title = "Top catchers in this chat"
		entries, err = b.game.TopChat(ctx, msg.Chat.ID, 10)
	}
	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	if len(entries) == 0 {
		b.reply(msg, "Nobody has caught anything yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString(title + ":\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. user %d: %d\n", i+1, e.UserID, e.Score)
	}
	b.reply(msg, sb.String())
}

func (b *Bot) cmdCollection(ctx context.Context, msg *tgbotapi.Message) {
	entries, err := b.game.Collection(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg, apperrors.UserMessage(err))
		return
	}
	if len(entries) == 0 {
		b.reply(msg, "Your collection is empty. Catch something!")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Your collection (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %s (%s) [%s]\n", rarityStars(e.Rarity), e.Name, e.Series, e.InstanceID)
	}
	b.reply(msg, sb.String())
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	parts := strings.SplitN(cb.Data, ":", 3)
	if len(parts) != 3 || parts[0] != "pay" {
		return
	}
	token := parts[2]

	var text string
	switch parts[1] {
	case "c":
		payment, err := b.payments.Confirm(ctx, cb.From.ID, token)
		if err != nil {
			text = apperrors.UserMessage(err)
		} else {
			text = fmt.Sprintf("Paid %d coins.", payment.Amount)
		}
	case "x":
		if err := b.payments.Cancel(ctx, cb.From.ID, token); err != nil {
			text = apperrors.UserMessage(err)
		} else {
			text = "Payment cancelled."
		}
	default:
		return
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.logger.WithError(err).Warn("failed to answer callback")
	}
	if cb.Message != nil {
		edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
		b.send(edit)
	}
}

func (b *Bot) handleInlineQuery(ctx context.Context, q *tgbotapi.InlineQuery) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return
	}

	characters, err := b.characters.Search(ctx, query, 10)
	if err != nil {
		b.logger.WithError(err).Warn("inline search failed")
		return
	}

	results := make([]interface{}, 0, len(characters))
	for _, c := range characters {
		article := tgbotapi.NewInlineQueryResultArticle(
			c.ID,
			fmt.Sprintf("%s (%s)", c.Name, c.Series),
			fmt.Sprintf("%s %s from %s", rarityStars(c.Rarity), c.Name, c.Series),
		)
		article.Description = rarityStars(c.Rarity)
		results = append(results, article)
	}

	if _, err := b.api.Request(tgbotapi.InlineConfig{
		InlineQueryID: q.ID,
		Results:       results,
		CacheTime:     30,
	}); err != nil {
		b.logger.WithError(err).Warn("failed to answer inline query")
	}
}

func repliedUser(msg *tgbotapi.Message) *tgbotapi.User {
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		return nil
	}
	target := msg.ReplyToMessage.From
	if target.IsBot {
		return nil
	}
	return target
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func rarityStars(r models.Rarity) string {
	return strings.Repeat("★", int(r))
}

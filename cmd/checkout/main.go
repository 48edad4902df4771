// Command checkout drives the storefront checkout against the order API:
// placing orders, recovering interrupted payments and following the admin
// order feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ecostore/internal/checkout"
	"ecostore/internal/config"
	"ecostore/internal/events"
	"ecostore/internal/models"
	"ecostore/internal/notify"
	"ecostore/internal/storage"
)

const usage = `usage: checkout <command> [flags]

commands:
  place   --draft FILE   submit the order described in FILE (yaml, json or toml)
  status                 show the pending payment and reconcile it with the backend
  retry                  reopen the gateway for the pending payment
  cancel                 cancel the order awaiting payment
  login                  store an admin session
  watch                  follow the live order feed (admin)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s error: %v\n", checkout.KindOf(err), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(out, usage)
		return nil
	}
	cmd := args[0]

	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.SetOutput(out)
	configFile := fs.String("config", "", "config file (env variables override it)")
	verbose := fs.BoolP("verbose", "v", false, "log requests and retries")
	draftFile := fs.String("draft", "", "order draft file (place)")
	method := fs.String("method", "", "payment method override: COD or Razorpay (place)")
	coupon := fs.String("coupon", "", "coupon code (place)")
	username := fs.String("username", "", "admin username (login)")
	password := fs.String("password", "", "admin password (login)")
	fs.String("api-url", "", "order API base URL")
	fs.String("store", "", "local state store: memory, sqlite or redis")
	fs.String("gateway", "", "sandbox checkout outcome: pay, dismiss or decline")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if !*verbose {
		log.SetOutput(io.Discard)
	}

	v := config.New()
	bindFlag(v, "CHECKOUT_API_URL", fs, "api-url")
	bindFlag(v, "CHECKOUT_STORE", fs, "store")
	bindFlag(v, "CHECKOUT_GATEWAY", fs, "gateway")
	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg, err := config.LoadClient(v)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	local := checkout.NewLocalState(store)
	client := checkout.NewClient(checkout.ClientConfig{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.Timeout,
		RetryBase: cfg.RetryBase,
		Attempts:  cfg.Attempts,
	}, local)

	switch cmd {
	case "login":
		if *username == "" || *password == "" {
			return errors.New("login needs --username and --password")
		}
		if _, err := client.Login(ctx, *username, *password); err != nil {
			return err
		}
		fmt.Fprintln(out, "Logged in.")
		return nil
	case "watch":
		return watch(ctx, cfg, local, out)
	}

	gateway := checkout.ModalGateway{Modal: &checkout.SandboxModal{
		KeySecret:   cfg.GatewaySecret,
		Behavior:    checkout.SandboxBehavior(cfg.GatewayBehavior),
		Delay:       200 * time.Millisecond,
		Unavailable: cfg.GatewayDisabled,
	}}
	flow := checkout.NewFlow(client, gateway, local)

	switch cmd {
	case "place":
		if *draftFile == "" {
			return errors.New("place needs --draft")
		}
		d, err := loadDraftFile(*draftFile)
		if err != nil {
			return err
		}
		if *method != "" {
			d.PaymentMethod = *method
		}
		if *coupon != "" {
			d.Coupon = *coupon
		}
		return place(ctx, flow, local, d, out)
	case "status":
		return status(ctx, flow, out)
	case "retry":
		if _, err := flow.Start(ctx); err != nil {
			return err
		}
		order, err := flow.RetryPayment(ctx)
		if err != nil {
			return err
		}
		printOrder(out, order)
		return nil
	case "cancel":
		if _, err := flow.Start(ctx); err != nil {
			return err
		}
		if err := flow.CancelPayment(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Order cancelled. Your cart is kept; place the order again when ready.")
		return nil
	}
	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}

func bindFlag(v *viper.Viper, key string, fs *pflag.FlagSet, name string) {
	if f := fs.Lookup(name); f != nil && f.Changed {
		_ = v.BindPFlag(key, f)
	}
}

// draftFile is the on-disk order description used by place.
type draftFile struct {
	Items           []models.OrderItem
	Customer        models.Customer
	ShippingAddress models.ShippingAddress
	GSTNumber       string
	Coupon          string
	PaymentMethod   string
}

func loadDraftFile(path string) (draftFile, error) {
	dv := viper.New()
	dv.SetConfigFile(path)
	if err := dv.ReadInConfig(); err != nil {
		return draftFile{}, fmt.Errorf("failed to read draft: %w", err)
	}
	var d draftFile
	if err := dv.Unmarshal(&d); err != nil {
		return draftFile{}, fmt.Errorf("failed to decode draft: %w", err)
	}
	if d.PaymentMethod == "" {
		d.PaymentMethod = string(models.PaymentCashOnDelivery)
	}
	return d, nil
}

func openStore(cfg config.Client) (storage.Store, func() error, error) {
	switch cfg.Store {
	case config.StoreRedis:
		s := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisNamespace, cfg.RedisTTL)
		return s, s.Close, nil
	case config.StoreSQLite:
		db, err := gorm.Open(sqlite.Open(cfg.StorePath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local store: %w", err)
		}
		s, err := storage.NewGORMStore(db)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return s, sqlDB.Close, nil
	default:
		return storage.NewMemoryStore(), func() error { return nil }, nil
	}
}

func place(ctx context.Context, flow *checkout.Flow, local *checkout.LocalState, d draftFile, out io.Writer) error {
	if err := local.SaveCart(ctx, d.Items); err != nil {
		return err
	}
	if _, err := flow.Start(ctx); err != nil {
		return err
	}

	draft := flow.Draft()
	draft.SetCustomer(d.Customer)
	draft.SetShippingAddress(d.ShippingAddress)
	draft.SetGSTNumber(d.GSTNumber)
	draft.SetPaymentMethod(models.PaymentMethod(d.PaymentMethod))
	if d.Coupon != "" {
		if err := draft.ApplyCoupon(d.Coupon); err != nil {
			return err
		}
	}

	preview := draft.Draft()
	fmt.Fprintf(out, "Subtotal %.2f, shipping %.2f, discount %.2f, total %.2f (%s)\n",
		preview.Subtotal, preview.ShippingMethod.Cost, preview.Coupon.Discount, preview.Total, preview.PaymentMethod)

	order, err := flow.PlaceOrder(ctx)
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		for _, fe := range verr.Errors {
			fmt.Fprintf(out, "  %s: %s\n", fe.Field, fe.Message)
		}
		return err
	case errors.Is(err, checkout.ErrPrepaidUnavailable):
		fmt.Fprintln(out, "Online payment is unavailable; the draft was switched to cash on delivery.")
		return err
	case err != nil:
		return err
	}
	printOrder(out, order)
	return nil
}

func status(ctx context.Context, flow *checkout.Flow, out io.Writer) error {
	st, err := flow.Start(ctx)
	if err != nil {
		return err
	}
	if st.Phase != checkout.Interrupted {
		fmt.Fprintln(out, "No payment is pending.")
		return nil
	}
	fmt.Fprintf(out, "Payment for order %s started %s is awaiting completion.\n",
		st.Pending.OrderID, st.Pending.Timestamp.Local().Format(time.RFC1123))

	order, err := flow.CheckStatus(ctx)
	if err != nil {
		return err
	}
	printOrder(out, order)
	return nil
}

func watch(ctx context.Context, cfg config.Client, local *checkout.LocalState, out io.Writer) error {
	sess, err := local.Session(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("watch: %w; run checkout login first", checkout.ErrUnauthorized)
	}

	w := notify.NewWatcher(notify.Config{
		URL:       strings.TrimRight(cfg.APIURL, "/") + "/api/orders/stream",
		Token:     sess.Token,
		RetryBase: cfg.RetryBase,
	})
	fmt.Fprintln(out, "Watching orders, press Ctrl+C to stop.")
	err = w.Watch(ctx, func(ev events.OrderEvent) {
		fmt.Fprintf(out, "%s  %-20s %s  %s  %.2f  %s/%s\n",
			ev.OccurredAt.Local().Format("15:04:05"), ev.Type, ev.OrderID, ev.CustomerName,
			ev.Total, ev.PaymentStatus, ev.OrderStatus)
	})
	if errors.Is(err, notify.ErrUnauthorized) {
		_ = local.ClearSession(ctx)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printOrder(out io.Writer, order *models.Order) {
	fmt.Fprintf(out, "Order %s: payment %s, status %s, total %.2f\n",
		order.OrderID, order.PaymentStatus, order.OrderStatus, order.Total)
}

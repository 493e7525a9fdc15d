// cmd/ledger-admin/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"associate-ledger/internal/pkg/httpclient"
	"associate-ledger/internal/pkg/logger"
	"associate-ledger/internal/pkg/tracing"

	"github.com/pkg/errors"
)

const (
	serviceName = "ledger-admin"
)

const usage = `usage: ledger-admin [flags] <command> [args]

commands:
  summary              fixed referral bonus totals per level
  verify               recompute the bonus aggregate and compare
  payouts              list all payout requests
  approve <id>         approve a pending payout request
  reject <id>          reject a pending payout request
  deliver <id>         mark an order as delivered
  commission <id>      settle legacy commission for an order
  set-role <user> <role>
  set-balance <user> <amount>
`

// main 是账本服务的运维命令行，所有操作都通过 HTTP 接口完成
func main() {
	addr := flag.String("addr", getEnv("LEDGER_ADDR", "http://localhost:8090"), "ledger service base url")
	principal := flag.String("principal", os.Getenv("LEDGER_PRINCIPAL"), "caller principal")
	jaeger := flag.String("jaeger", getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"), "jaeger collector endpoint")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage); flag.PrintDefaults() }
	flag.Parse()

	logger.Init(serviceName, "warn", "console")

	tp, err := tracing.InitTracerProvider(serviceName, *jaeger, 1)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("Failed to initialize tracer provider")
	}
	defer tp.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := httpclient.NewClient(tp.Tracer(serviceName), *addr, *principal)
	out, err := run(ctx, client, flag.Args())
	if err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if out != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
	}
}

var errUsage = errors.New("usage")

// run 执行一个子命令并返回需要打印的结果
func run(ctx context.Context, c *httpclient.Client, args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	var (
		out interface{}
		err error
	)
	switch cmd, rest := args[0], args[1:]; cmd {
	case "summary":
		err = c.Get(ctx, "/v1/bonus-summary", &out)
	case "verify":
		err = c.Get(ctx, "/v1/bonus-summary/verify", &out)
	case "payouts":
		err = c.Get(ctx, "/v1/payouts", &out)
	case "approve", "reject":
		var id uint64
		if id, err = idArg(rest); err == nil {
			body := map[string]bool{"approved": cmd == "approve"}
			err = c.Post(ctx, fmt.Sprintf("/v1/payouts/%d/process", id), body, &out)
		}
	case "deliver":
		var id uint64
		if id, err = idArg(rest); err == nil {
			err = c.Post(ctx, fmt.Sprintf("/v1/orders/%d/deliver", id), nil, nil)
		}
	case "commission":
		var id uint64
		if id, err = idArg(rest); err == nil {
			err = c.Post(ctx, fmt.Sprintf("/v1/orders/%d/commission", id), nil, &out)
		}
	case "set-role":
		if len(rest) != 2 {
			return nil, errUsage
		}
		err = c.Do(ctx, http.MethodPut, "/v1/roles/"+rest[0], map[string]string{"role": rest[1]}, nil)
	case "set-balance":
		if len(rest) != 2 {
			return nil, errUsage
		}
		var amount int64
		if amount, err = strconv.ParseInt(rest[1], 10, 64); err != nil {
			return nil, errors.Wrapf(err, "parse amount %q", rest[1])
		}
		err = c.Do(ctx, http.MethodPut, "/v1/wallets/"+rest[0], map[string]int64{"amount": amount}, nil)
	default:
		return nil, errUsage
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func idArg(args []string) (uint64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse id %q", args[0])
	}
	return id, nil
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

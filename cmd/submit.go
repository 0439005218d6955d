// File: cmd/submit.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/form"
	"github.com/minsu-cho/declarepass/internal/observability"
	"github.com/minsu-cho/declarepass/internal/service"
)

var submitHeadless bool

// submitCmd runs one declaration from a JSON request file and prints the
// confirmation details.
var submitCmd = &cobra.Command{
	Use:   "submit <request.json>",
	Short: "Submit one declaration from a JSON request file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		defer observability.Sync()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("headless") {
			cfg.Browser.Headless = submitHeadless
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading request file: %w", err)
		}
		var req form.FormSubmissionRequest
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("parsing request file: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := service.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer svc.Shutdown(context.Background())

		result, err := svc.Submit(ctx, &req, service.SubmitOptions{})
		if err != nil {
			logger.Error("Declaration failed.", zap.Error(err))
			fmt.Fprintf(os.Stderr, "Declaration failed: %v\nComplete the declaration manually at %s\n", err, svc.FallbackURL())
			return err
		}

		fmt.Printf("Declaration confirmed.\n")
		fmt.Printf("  Registration number: %s\n", result.RegistrationNumber)
		fmt.Printf("  Port:                %s\n", result.PortInfo)
		fmt.Printf("  Customs office:      %s\n", result.CustomsOffice)
		fmt.Printf("  Capture method:      %s\n", result.CaptureMethod)
		return nil
	},
}

func init() {
	submitCmd.Flags().BoolVar(&submitHeadless, "headless", true, "run the browser headless")
	rootCmd.AddCommand(submitCmd)
}

// gatewayctl is an operator CLI for the risk gateway's ops surface: it
// logs in, then drives halt/resume/audit/pipeline over HTTP so an
// operator never needs to hand-craft curl calls against a production
// gateway.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	gatewayURL string
	token      string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gatewayctl",
	Short: "Operator CLI for the pre-trade risk gateway's ops surface",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "url", "http://localhost:8080", "base URL of the gateway")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("GATEWAYCTL_TOKEN"), "admin bearer token (or GATEWAYCTL_TOKEN)")

	rootCmd.AddCommand(loginCmd, haltCmd, resumeCmd, auditCmd, pipelineCmd)
}

func client() *resty.Client {
	c := resty.New().SetBaseURL(gatewayURL)
	if token != "" {
		c.SetAuthToken(token)
	}
	return c
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func call(req *resty.Request, method, path string) (*apiEnvelope, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var env apiEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("gateway error: %s", env.Error)
	}
	return &env, nil
}

var loginCmd = &cobra.Command{
	Use:   "login [operator_id] [password]",
	Short: "Exchange operator credentials for a bearer token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := call(client().R().SetBody(map[string]string{
			"operator_id": args[0],
			"password":    args[1],
		}), "POST", "/api/v1/admin/login")
		if err != nil {
			return err
		}
		var data map[string]string
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		fmt.Println(data["token"])
		return nil
	},
}

var haltCmd = &cobra.Command{
	Use:   "halt [ticker] [reason]",
	Short: "Halt trading for a ticker",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := call(client().R().SetBody(map[string]string{
			"ticker": args[0],
			"reason": args[1],
		}), "POST", "/api/v1/ops/halt")
		if err == nil {
			fmt.Printf("halted %s\n", args[0])
		}
		return err
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [ticker]",
	Short: "Resume trading for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := call(client().R().SetBody(map[string]string{
			"ticker": args[0],
		}), "POST", "/api/v1/ops/resume")
		if err == nil {
			fmt.Printf("resumed %s\n", args[0])
		}
		return err
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print recent audit log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := call(client().R(), "GET", "/api/v1/ops/audit")
		if err != nil {
			return err
		}
		fmt.Println(string(env.Data))
		return nil
	},
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Print per-plugin pass/deny counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := call(client().R(), "GET", "/api/v1/ops/pipeline")
		if err != nil {
			return err
		}
		fmt.Println(string(env.Data))
		return nil
	},
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"inferd/pkg/types"
)

// buildModelsCmd provides a thin admin client against a running daemon.
func buildModelsCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage registered models on a running daemon",
	}
	cmd.PersistentFlags().StringVarP(&server, "server", "s", "http://127.0.0.1:8080", "Base URL of the daemon")

	client := &http.Client{Timeout: 30 * time.Second}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered models",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(server + "/models")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}

	var (
		regType    string
		regVersion string
		regURI     string
		regSHA     string
		regMetrics string
	)
	register := &cobra.Command{
		Use:   "register <name>",
		Short: "Register a new model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.RegisterRequest{
				Name:    args[0],
				Type:    types.ModelType(regType),
				Version: regVersion,
				Artifact: types.ArtifactRef{
					URI:    regURI,
					SHA256: regSHA,
				},
			}
			if regMetrics != "" {
				if err := json.Unmarshal([]byte(regMetrics), &req.Metrics); err != nil {
					return fmt.Errorf("invalid --metrics JSON: %w", err)
				}
			}
			return postJSON(client, http.MethodPost, server+"/models", req)
		},
	}
	register.Flags().StringVar(&regType, "type", "", "Model type (detector|classifier)")
	register.Flags().StringVar(&regVersion, "version", "", "Model version")
	register.Flags().StringVar(&regURI, "uri", "", "Artifact URI (file path or URL)")
	register.Flags().StringVar(&regSHA, "sha256", "", "Expected artifact sha256 (hex)")
	register.Flags().StringVar(&regMetrics, "metrics", "", `Metrics JSON, e.g. '{"latency_ms":12,"accuracy":0.93}'`)

	unregister := &cobra.Command{
		Use:   "unregister <name>",
		Short: "Unregister a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodDelete, server+"/models/"+args[0], nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}

	var (
		updVersion string
		updURI     string
		updSHA     string
		updMetrics string
	)
	update := &cobra.Command{
		Use:   "update <name>",
		Short: "Swap a model's artifact and version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.UpdateRequest{
				Version: updVersion,
				Artifact: types.ArtifactRef{
					URI:    updURI,
					SHA256: updSHA,
				},
			}
			if updMetrics != "" {
				if err := json.Unmarshal([]byte(updMetrics), &req.Metrics); err != nil {
					return fmt.Errorf("invalid --metrics JSON: %w", err)
				}
			}
			return postJSON(client, http.MethodPut, server+"/models/"+args[0], req)
		},
	}
	update.Flags().StringVar(&updVersion, "version", "", "New model version")
	update.Flags().StringVar(&updURI, "uri", "", "New artifact URI")
	update.Flags().StringVar(&updSHA, "sha256", "", "Expected artifact sha256 (hex)")
	update.Flags().StringVar(&updMetrics, "metrics", "", "Metrics JSON to merge")

	cmd.AddCommand(list, register, unregister, update)
	return cmd
}

func postJSON(client *http.Client, method, url string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(b) > 0 {
		os.Stdout.Write(b)
		if b[len(b)-1] != '\n' {
			fmt.Println()
		}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"globusannex/pkg/fingerprint"
	"globusannex/pkg/globus"
	"globusannex/pkg/keys"
	"globusannex/pkg/logging"
	"globusannex/pkg/protocol"
	"globusannex/pkg/remote"
	"globusannex/pkg/ui"
)

const version = "0.1.0"

// defaultClientID 是注册在 Globus 上的 native app client id
const defaultClientID = "01589ab6-70d1-4e1c-b33d-14b6af4a16be"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "git-annex-remote-globus 错误: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logFile      string
		logLevel     string
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:           "git-annex-remote-globus",
		Short:         "git-annex 的 Globus special remote",
		Long:          "不带参数运行时在 stdin/stdout 上与 git-annex 对话，实现 external special remote 协议。",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger(logLevel, logFile)
			if err != nil {
				return err
			}
			defer logger.Close()

			var progress ui.Progress
			if showProgress {
				// stdout 是协议通道，进度条只能画在 stderr
				progress = ui.NewBarProgress(os.Stderr)
			}
			handler := remote.New(remote.Options{
				Logger:   logger.Logger,
				Token:    os.Getenv("GLOBUS_TRANSFER_TOKEN"),
				Progress: progress,
			})
			listener := protocol.NewListener(handler, os.Stdin, os.Stdout, logger.Logger)
			return listener.Run()
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "日志级别：debug / info / warn / error")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "日志文件路径，不填只写 stderr")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "在 stderr 上显示传输进度条")

	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newFingerprintCmd())
	cmd.AddCommand(newScanKeysCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func buildLogger(level, file string) (*logging.Logger, error) {
	if file == "" {
		return logging.New(level), nil
	}
	f, err := os.Create(file)
	if err != nil {
		return nil, fmt.Errorf("创建日志文件失败: %w", err)
	}
	return logging.New(level, os.Stderr, f), nil
}

func newSetupCmd() *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "执行 Globus 授权流程并打印 token",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := globus.NewAuthenticator(clientID)
			auth.Stdout = cmd.OutOrStdout()
			token, err := auth.Authorize(cmdContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "auth token: %s\n", token.AccessToken)
			fmt.Fprintf(cmd.OutOrStdout(), "transfer token: %s\n", globus.TransferToken(token))
			fmt.Fprintln(cmd.OutOrStdout(), "请导出环境变量 GLOBUS_TRANSFER_TOKEN 后再使用 remote")
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", defaultClientID, "Globus native app 的 client id")
	return cmd
}

func newFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <url>",
		Short: "拉取 URL 内容并输出 SHA-256 摘要与 URL 的配对",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := fingerprint.Fingerprint(cmdContext(cmd), nil, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fingerprint.Line(sum, args[0]))
			return nil
		},
	}
}

func newScanKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scankeys <dir> <remote-prefix>",
		Short: "遍历 annex 仓库目录，输出 key hash 与远端路径的配对",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := keys.Scan(args[0], args[1])
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), entry.Line())
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本号",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "git-annex-remote-globus %s\n", version)
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

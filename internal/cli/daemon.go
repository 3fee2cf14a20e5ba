package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/factorn/factord/internal/node"
	"github.com/factorn/factord/internal/rpc"
)

var (
	daemonCmd = &cobra.Command{
		Use:   "daemon",
		RunE:  runDaemon,
		Short: "run the daemon",
	}
)

func init() {
	daemonCmd.Flags().StringP("rpc-listen", "r", ":8332", "rpc listen address")
	viper.BindPFlag("rpc_listen", daemonCmd.Flags().Lookup("rpc-listen"))
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := node.NewNode(ctx)
	if err != nil {
		return errors.Wrap(err, "initing node")
	}

	errCh := make(chan error)

	srv := rpc.NewServer(n)
	go func() {
		if err := srv.ListenAndServe(n.Config().RPCListen); err != nil {
			errCh <- err
		}
	}()
	defer srv.Shutdown(ctx)

	select {
	case err := <-errCh:
		return err
	case <-waitExit(ctx):
		return n.Stop()
	}
}

func waitExit(ctx context.Context) <-chan os.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	return sigs
}

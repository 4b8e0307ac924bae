package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"tickbook/api/grpcserver"
	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
)

const addrFlagName = "addr"

func init() {
	for _, c := range []*cobra.Command{placeCmd, cancelCmd, topCmd} {
		c.Flags().String(addrFlagName, "localhost:50051", "Address of the gRPC gateway")
		rootCmd.AddCommand(c)
	}
}

var placeCmd = &cobra.Command{
	Use:   "place SYMBOL buy|sell PRICE QUANTITY",
	Short: "Submit a limit order to a running server",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := symbol.Parse(args[0])
		if err != nil {
			return err
		}
		side, err := parseSide(args[1])
		if err != nil {
			return err
		}
		price, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return errors.Wrap(err, "price")
		}
		qty, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return errors.Wrap(err, "quantity")
		}
		return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (*structpb.Struct, error) {
			return c.PlaceOrder(ctx, sym, side, orderbook.Tick(price), qty)
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel SYMBOL HANDLE",
	Short: "Cancel a resting order on a running server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := symbol.Parse(args[0])
		if err != nil {
			return err
		}
		h, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return errors.Wrap(err, "handle")
		}
		return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (*structpb.Struct, error) {
			return c.CancelOrder(ctx, sym, orderbook.Handle(h))
		})
	},
}

var topCmd = &cobra.Command{
	Use:   "top SYMBOL",
	Short: "Show the best bid and ask of a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := symbol.Parse(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *grpcserver.Client) (*structpb.Struct, error) {
			return c.TopOfBook(ctx, sym)
		})
	},
}

func withClient(cmd *cobra.Command, fn func(context.Context, *grpcserver.Client) (*structpb.Struct, error)) error {
	addr, err := cmd.Flags().GetString(addrFlagName)
	if err != nil {
		return err
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	resp, err := fn(ctx, grpcserver.NewClient(conn))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), protojson.Format(resp))
	return nil
}

func parseSide(s string) (orderbook.Side, error) {
	switch strings.ToLower(s) {
	case "buy", "bid":
		return orderbook.Buy, nil
	case "sell", "ask":
		return orderbook.Sell, nil
	}
	return 0, errors.Newf("side %q: want buy or sell", s)
}

// Package client holds the Order Coordinator's outbound collaborators:
// the synchronous Inventory gRPC client (spec §4.1/§5) and a thin
// catalog passthrough for the read-only /products routes (§6).
package client

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	domainerrors "github.com/kyungseok/reservation-core/common/errors"
	"github.com/kyungseok/reservation-core/common/invrpc"
)

// reserveStockDeadline is the hard client-side deadline on the
// reservation RPC (§5): a breach is classified as TIMEOUT.
const reserveStockDeadline = 2 * time.Second

// healthCheckDeadline bounds the Inventory health probe (§5).
const healthCheckDeadline = 1 * time.Second

// InventoryClient is the coordinator's view of the Inventory Custodian.
type InventoryClient struct {
	conn   *grpc.ClientConn
	rpc    invrpc.InventoryServiceClient
	logger *zap.Logger
}

// NewInventoryClient dials target (host:port) and wraps it as an
// InventoryClient. The connection uses plaintext transport credentials;
// this protocol runs inside a trusted cluster network, matching the
// teacher's own internal service-to-service calls.
func NewInventoryClient(target string, logger *zap.Logger) (*InventoryClient, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeTransport, "failed to dial inventory service", err)
	}
	return &InventoryClient{conn: conn, rpc: invrpc.NewInventoryServiceClient(conn), logger: logger}, nil
}

// Close releases the underlying connection.
func (c *InventoryClient) Close() error {
	return c.conn.Close()
}

// ReserveStock issues the synchronous reservation RPC with a hard 2s
// deadline (§4.1 step 4) and classifies the outcome (§4.1 step 5, §7): a
// deadline breach maps to TIMEOUT, an Unavailable/Canceled/Aborted status
// to UNAVAILABLE, and any other RPC error to TRANSPORT_ERROR. All three are
// returned as a *DomainError; errors.IsTransportFailure is true for the
// first two only. A reply that reached the server (success or domain
// failure) is returned as-is with a nil error.
func (c *InventoryClient) ReserveStock(ctx context.Context, req *invrpc.ReserveStockRequest) (*invrpc.ReserveStockResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, reserveStockDeadline)
	defer cancel()

	resp, err := c.rpc.ReserveStock(ctx, req)
	if err != nil {
		return nil, classifyRPCError(err)
	}
	return resp, nil
}

// ReleaseStock calls Inventory's releaseStock (§4.4). Cancel does not
// block on its outcome (§4.1 "Cancel order"); callers may ignore errors.
func (c *InventoryClient) ReleaseStock(ctx context.Context, req *invrpc.ReleaseStockRequest) (*invrpc.ReleaseStockResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, reserveStockDeadline)
	defer cancel()

	resp, err := c.rpc.ReleaseStock(ctx, req)
	if err != nil {
		return nil, classifyRPCError(err)
	}
	return resp, nil
}

// CheckStock backs the GET /products/:id/stock route.
func (c *InventoryClient) CheckStock(ctx context.Context, productID string) (*invrpc.CheckStockResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, reserveStockDeadline)
	defer cancel()

	resp, err := c.rpc.CheckStock(ctx, &invrpc.CheckStockRequest{ProductID: productID})
	if err != nil {
		return nil, classifyRPCError(err)
	}
	return resp, nil
}

// HealthCheck probes Inventory with a 1s deadline (§5); downstream
// health is informational only (§9 open question), so callers should not
// fail their own health response on its error.
func (c *InventoryClient) HealthCheck(ctx context.Context) (*invrpc.HealthCheckResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckDeadline)
	defer cancel()

	resp, err := c.rpc.HealthCheck(ctx, &invrpc.HealthCheckRequest{})
	if err != nil {
		return nil, classifyRPCError(err)
	}
	return resp, nil
}

func classifyRPCError(err error) error {
	if status.Code(err) == codes.DeadlineExceeded {
		return domainerrors.Wrap(domainerrors.ErrCodeTimeout, "reservation rpc deadline exceeded", err)
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.Canceled, codes.Aborted:
			return domainerrors.Wrap(domainerrors.ErrCodeUnavailable, "inventory service unavailable", err)
		}
	}
	return domainerrors.Wrap(domainerrors.ErrCodeTransport, "inventory rpc failed", err)
}

package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"referral-ledger/internal/services"
)

const ServiceName = "network.NetworkService"

// NetworkServer is the gRPC surface of the engine. Messages are google.protobuf.Struct.
type NetworkServer interface {
	ComputeNetworkStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PreviewCommissions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	EvaluateRank(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RunReconciliation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var networkServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NetworkServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ComputeNetworkStats", Handler: unary("ComputeNetworkStats", NetworkServer.ComputeNetworkStats)},
		{MethodName: "PreviewCommissions", Handler: unary("PreviewCommissions", NetworkServer.PreviewCommissions)},
		{MethodName: "EvaluateRank", Handler: unary("EvaluateRank", NetworkServer.EvaluateRank)},
		{MethodName: "RunReconciliation", Handler: unary("RunReconciliation", NetworkServer.RunReconciliation)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "network.proto",
}

func unary(method string, call func(NetworkServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(NetworkServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(NetworkServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func RegisterNetworkServer(s grpc.ServiceRegistrar, srv NetworkServer) {
	s.RegisterService(&networkServiceDesc, srv)
}

type Server struct {
	Network        *services.NetworkService
	Commission     *services.CommissionService
	Ranks          *services.RankEvaluator
	Reconciliation *services.ReconciliationService
}

// NewGRPCServer builds a grpc.Server with the network service and logging interceptor registered.
func NewGRPCServer(srv *Server) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor))
	RegisterNetworkServer(s, srv)
	return s
}

// StartGRPCServer blocks serving on port.
func StartGRPCServer(port string, srv *Server) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s := NewGRPCServer(srv)

	logrus.Infof("gRPC server listening at %v", lis.Addr())
	return s.Serve(lis)
}

func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	entry := logrus.WithFields(logrus.Fields{
		"method":   info.FullMethod,
		"duration": time.Since(start).String(),
		"code":     status.Code(err).String(),
	})
	if err != nil && status.Code(err) == codes.Internal {
		entry.WithError(err).Error("gRPC call failed")
	} else {
		entry.Debug("gRPC call served")
	}
	return resp, err
}

func (s *Server) ComputeNetworkStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userId, err := intField(req, "user_id")
	if err != nil {
		return nil, err
	}

	stats, err := s.Network.ComputeNetworkStats(ctx, userId)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]interface{}{"user_id": userId, "levels": stats})
}

func (s *Server) PreviewCommissions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userId, err := intField(req, "user_id")
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}

	shares, err := s.Commission.PreviewCommissions(ctx, userId, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]interface{}{"user_id": userId, "amount": amount, "shares": shares})
}

func (s *Server) EvaluateRank(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	volume, err := decimalField(req, "team_volume")
	if err != nil {
		return nil, err
	}

	tier, err := s.Ranks.EvaluateRank(volume)
	if err != nil {
		return nil, toStatus(err)
	}
	next, remaining, err := s.Ranks.NextTier(volume)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]interface{}{
		"rank":                tier,
		"next_rank":           next,
		"volume_to_next_rank": remaining,
	})
}

func (s *Server) RunReconciliation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	trigger := services.TriggerOperator
	if v, ok := req.GetFields()["trigger"]; ok && v.GetStringValue() != "" {
		trigger = v.GetStringValue()
	}

	summary, err := s.Reconciliation.RunReconciliation(ctx, trigger)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(summary)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, services.ErrJobRunning):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func intField(req *structpb.Struct, key string) (int, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber || n.NumberValue != float64(int(n.NumberValue)) {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", key)
	}
	return int(n.NumberValue), nil
}

// decimalField accepts a string (preferred, exact) or a number.
func decimalField(req *structpb.Struct, key string) (decimal.Decimal, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is not a number: %v", key, err)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(kind.NumberValue), nil
	default:
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s must be a string or number", key)
	}
}

// toStruct goes through JSON so decimals keep their string form.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

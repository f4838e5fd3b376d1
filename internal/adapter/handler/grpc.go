package handler

import (
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hive-corporation/iocagg/internal/core/service"
)

const (
	AggregatorServiceName = "iocagg.v1.Aggregator"
	AggregateMethod       = "/" + AggregatorServiceName + "/Aggregate"
)

// AggregatorServer is the gRPC surface. Requests and responses are
// google.protobuf.Struct so clients need no generated stubs.
type AggregatorServer interface {
	Aggregate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var AggregatorServiceDesc = grpc.ServiceDesc{
	ServiceName: AggregatorServiceName,
	HandlerType: (*AggregatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Aggregate",
			Handler:    aggregateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "iocagg/v1/aggregator.proto",
}

func RegisterAggregatorServer(s grpc.ServiceRegistrar, srv AggregatorServer) {
	s.RegisterService(&AggregatorServiceDesc, srv)
}

func aggregateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AggregatorServer).Aggregate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AggregateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AggregatorServer).Aggregate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type GrpcServer struct {
	agg      *service.Aggregator
	defaults QueryDefaults
	logger   *zap.Logger
}

func NewGrpcServer(agg *service.Aggregator, defaults QueryDefaults, logger *zap.Logger) *GrpcServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrpcServer{
		agg:      agg,
		defaults: defaults,
		logger:   logger,
	}
}

func (s *GrpcServer) Aggregate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	query, err := queryParams{
		Sources:  stringField(fields, "sources"),
		Type:     stringField(fields, "type"),
		Country:  stringField(fields, "country"),
		MinScore: stringField(fields, "min_score"),
		Limit:    stringField(fields, "limit"),
	}.toQuery(s.defaults)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result := s.agg.Run(ctx, query)

	data, err := json.Marshal(newResultResponse(result))
	if err != nil {
		s.logger.Error("failed to encode aggregate response", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}

	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		s.logger.Error("failed to build aggregate response", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// stringField accepts both string and numeric values.
func stringField(fields map[string]*structpb.Value, name string) string {
	v, ok := fields[name]
	if !ok {
		return ""
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatInt(int64(kind.NumberValue), 10)
	default:
		return ""
	}
}

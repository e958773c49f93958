package wire

import (
	"context"

	"google.golang.org/grpc"
)

// Fully-qualified names of the Connector service and its methods.
const (
	ConnectorServiceName             = "qlik.sse.Connector"
	Connector_GetCapabilities_Method = "/qlik.sse.Connector/GetCapabilities"
	Connector_ExecuteFunction_Method = "/qlik.sse.Connector/ExecuteFunction"
	Connector_EvaluateScript_Method  = "/qlik.sse.Connector/EvaluateScript"
)

// ExecuteFunctionServer is the server side of an ExecuteFunction call.
type ExecuteFunctionServer = grpc.BidiStreamingServer[BundledRows, BundledRows]

// EvaluateScriptServer is the server side of an EvaluateScript call.
type EvaluateScriptServer = grpc.BidiStreamingServer[BundledRows, BundledRows]

// ConnectorServer is the server API of the Connector service.
type ConnectorServer interface {
	// GetCapabilities returns the plugin identity and its function catalog.
	GetCapabilities(context.Context, *Empty) (*Capabilities, error)
	// ExecuteFunction runs a registered function over a stream of rows.
	ExecuteFunction(ExecuteFunctionServer) error
	// EvaluateScript evaluates an ad-hoc script over a stream of rows.
	EvaluateScript(EvaluateScriptServer) error
}

// RegisterConnectorServer registers srv on the provided registrar.
// The server must be created with ServerCodec so messages of this package
// can be decoded.
func RegisterConnectorServer(s grpc.ServiceRegistrar, srv ConnectorServer) {
	s.RegisterService(&ConnectorServiceDesc, srv)
}

func connectorGetCapabilitiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConnectorServer).GetCapabilities(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Connector_GetCapabilities_Method,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ConnectorServer).GetCapabilities(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func connectorExecuteFunctionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ConnectorServer).ExecuteFunction(&grpc.GenericServerStream[BundledRows, BundledRows]{ServerStream: stream})
}

func connectorEvaluateScriptHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ConnectorServer).EvaluateScript(&grpc.GenericServerStream[BundledRows, BundledRows]{ServerStream: stream})
}

// ConnectorServiceDesc is the grpc.ServiceDesc for the Connector service.
var ConnectorServiceDesc = grpc.ServiceDesc{
	ServiceName: ConnectorServiceName,
	HandlerType: (*ConnectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetCapabilities",
			Handler:    connectorGetCapabilitiesHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ExecuteFunction",
			Handler:       connectorExecuteFunctionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "EvaluateScript",
			Handler:       connectorEvaluateScriptHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "ServerSideExtension.proto",
}

// ConnectorClient is the client API of the Connector service.
type ConnectorClient interface {
	GetCapabilities(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Capabilities, error)
	ExecuteFunction(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[BundledRows, BundledRows], error)
	EvaluateScript(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[BundledRows, BundledRows], error)
}

type connectorClient struct {
	cc grpc.ClientConnInterface
}

// NewConnectorClient returns a client for the Connector service.
// Every call is issued with CallCodec.
func NewConnectorClient(cc grpc.ClientConnInterface) ConnectorClient {
	return &connectorClient{cc: cc}
}

func (c *connectorClient) GetCapabilities(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Capabilities, error) {
	out := new(Capabilities)
	opts = append([]grpc.CallOption{CallCodec()}, opts...)
	if err := c.cc.Invoke(ctx, Connector_GetCapabilities_Method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *connectorClient) ExecuteFunction(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[BundledRows, BundledRows], error) {
	return c.bidi(ctx, 0, Connector_ExecuteFunction_Method, opts)
}

func (c *connectorClient) EvaluateScript(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[BundledRows, BundledRows], error) {
	return c.bidi(ctx, 1, Connector_EvaluateScript_Method, opts)
}

func (c *connectorClient) bidi(ctx context.Context, idx int, method string, opts []grpc.CallOption) (grpc.BidiStreamingClient[BundledRows, BundledRows], error) {
	opts = append([]grpc.CallOption{CallCodec()}, opts...)
	stream, err := c.cc.NewStream(ctx, &ConnectorServiceDesc.Streams[idx], method, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[BundledRows, BundledRows]{ClientStream: stream}, nil
}

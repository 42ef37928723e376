// Package rpc is the archive API through which crawlers submit their file lists to the
// archive server.
package rpc

import (
	"context"

	"github.com/golang/protobuf/proto"
	"google.golang.org/grpc"
)

// UpdateRequest submits the files of one crawler update. File keys are slash separated
// paths relative to the archive root.
type UpdateRequest struct {
	Id      string            `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Message string            `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
	File    map[string][]byte `protobuf:"bytes,3,rep,name=file,proto3" json:"file,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (m *UpdateRequest) Reset() {
	*m = UpdateRequest{}
}

func (m *UpdateRequest) String() string {
	return proto.CompactTextString(m)
}

func (*UpdateRequest) ProtoMessage() {}

type UpdateReply struct {
	Ok     bool   `protobuf:"varint,1,opt,name=ok,proto3" json:"ok,omitempty"`
	Commit string `protobuf:"bytes,2,opt,name=commit,proto3" json:"commit,omitempty"`
}

func (m *UpdateReply) Reset() {
	*m = UpdateReply{}
}

func (m *UpdateReply) String() string {
	return proto.CompactTextString(m)
}

func (*UpdateReply) ProtoMessage() {}

// APIServer is implemented by the archive server.
type APIServer interface {
	Update(context.Context, *UpdateRequest) (*UpdateReply, error)
}

// APIClient submits updates to an archive server.
type APIClient interface {
	Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*UpdateReply, error)
}

const updateMethod = "/rpc.API/Update"

type apiClient struct {
	cc grpc.ClientConnInterface
}

func NewAPIClient(cc grpc.ClientConnInterface) APIClient {
	return &apiClient{cc}
}

func (c *apiClient) Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*UpdateReply, error) {
	out := new(UpdateReply)
	if err := c.cc.Invoke(ctx, updateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterAPIServer(s grpc.ServiceRegistrar, srv APIServer) {
	s.RegisterService(&apiServiceDesc, srv)
}

func updateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(APIServer).Update(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: updateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(APIServer).Update(ctx, req.(*UpdateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var apiServiceDesc = grpc.ServiceDesc{
	ServiceName: "rpc.API",
	HandlerType: (*APIServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Update",
			Handler:    updateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rpc/api.go",
}

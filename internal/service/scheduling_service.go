package service

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
	"github.com/PulpFictionApps/veterinaria/internal/model"
	"github.com/PulpFictionApps/veterinaria/internal/scheduling"
	"github.com/PulpFictionApps/veterinaria/internal/sweeper"
)

const ServiceName = "scheduling.v1.SchedulingService"

// SchedulingServer — поверхность RPC. Запросы и ответы — google.protobuf.Struct.
type SchedulingServer interface {
	RegisterOwner(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateConsultationType(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListConsultationTypes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateRecurringAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSchedules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BookAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RescheduleAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAppointments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPendingReminders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkReminderSent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunExpirySweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type rpcCall func(SchedulingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call rpcCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SchedulingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SchedulingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func method(name string, call rpcCall) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: name, Handler: unaryHandler(name, call)}
}

var SchedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		method("RegisterOwner", SchedulingServer.RegisterOwner),
		method("CreateConsultationType", SchedulingServer.CreateConsultationType),
		method("ListConsultationTypes", SchedulingServer.ListConsultationTypes),
		method("CreateAvailability", SchedulingServer.CreateAvailability),
		method("CreateRecurringAvailability", SchedulingServer.CreateRecurringAvailability),
		method("ListSchedules", SchedulingServer.ListSchedules),
		method("ListAvailability", SchedulingServer.ListAvailability),
		method("DeleteAvailability", SchedulingServer.DeleteAvailability),
		method("BookAppointment", SchedulingServer.BookAppointment),
		method("GetAppointment", SchedulingServer.GetAppointment),
		method("RescheduleAppointment", SchedulingServer.RescheduleAppointment),
		method("CancelAppointment", SchedulingServer.CancelAppointment),
		method("ListAppointments", SchedulingServer.ListAppointments),
		method("ListPendingReminders", SchedulingServer.ListPendingReminders),
		method("MarkReminderSent", SchedulingServer.MarkReminderSent),
		method("RunExpirySweep", SchedulingServer.RunExpirySweep),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterSchedulingServiceServer(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&SchedulingServiceDesc, srv)
}

// SchedulingClient — тонкая обёртка для вызова методов по имени.
type SchedulingClient struct {
	cc grpc.ClientConnInterface
}

func NewSchedulingClient(cc grpc.ClientConnInterface) *SchedulingClient {
	return &SchedulingClient{cc: cc}
}

func (c *SchedulingClient) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type expirySweeper interface {
	RunOnce(ctx context.Context) (sweeper.Result, error)
}

type SchedulingService struct {
	engine  *scheduling.Engine
	sweeper expirySweeper
	log     *zap.Logger
}

var _ SchedulingServer = (*SchedulingService)(nil)

// NewSchedulingService: sw может быть nil, тогда RunExpirySweep недоступен.
func NewSchedulingService(engine *scheduling.Engine, sw expirySweeper, log *zap.Logger) *SchedulingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SchedulingService{
		engine:  engine,
		sweeper: sw,
		log:     log.Named("grpc"),
	}
}

func respond(op string, body map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(body)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%s: encode response: %v", op, err)
	}
	return out, nil
}

func (s *SchedulingService) RegisterOwner(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := s.engine.RegisterOwner(ctx, getString(req, "display_name"), getString(req, "email"))
	if err != nil {
		return nil, toStatus("register owner", err)
	}
	return respond("register owner", map[string]any{"owner": ownerValue(owner)})
}

func (s *SchedulingService) CreateConsultationType(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}
	duration, err := getInt(req, "duration_min")
	if err != nil {
		return nil, err
	}

	ct, err := s.engine.CreateConsultationType(ctx, scheduling.ConsultationTypeInput{
		OwnerID:     ownerID,
		Name:        getString(req, "name"),
		Description: getString(req, "description"),
		DurationMin: duration,
	})
	if err != nil {
		return nil, toStatus("create consultation type", err)
	}
	return respond("create consultation type", map[string]any{"consultation_type": consultationTypeValue(ct)})
}

func (s *SchedulingService) ListConsultationTypes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}

	page, size, err := pageRequest(req)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.ListConsultationTypes(ctx, ownerID, page, size)
	if err != nil {
		return nil, toStatus("list consultation types", err)
	}
	items := make([]any, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, consultationTypeValue(&res.Items[i]))
	}
	return respond("list consultation types", pageValue(res, "consultation_types", items))
}

func (s *SchedulingService) CreateAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}
	start, err := requireTime(req, "start")
	if err != nil {
		return nil, err
	}
	end, err := requireTime(req, "end")
	if err != nil {
		return nil, err
	}

	res, err := s.engine.CreateAvailability(ctx, ownerID, start, end)
	if err != nil {
		return nil, toStatus("create availability", err)
	}
	return respond("create availability", availabilityValue(res))
}

func (s *SchedulingService) CreateRecurringAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}
	rule, err := recurringRule(req, s.engine.Clock().Location())
	if err != nil {
		return nil, err
	}
	winStart, err := requireTime(req, "window_start")
	if err != nil {
		return nil, err
	}
	winEnd, err := requireTime(req, "window_end")
	if err != nil {
		return nil, err
	}

	res, err := s.engine.CreateRecurringAvailability(ctx, ownerID, rule, calendar.TimeRange{Start: winStart, End: winEnd})
	if err != nil {
		return nil, toStatus("create recurring availability", err)
	}
	return respond("create recurring availability", availabilityValue(res))
}

func availabilityValue(res *scheduling.AvailabilityResult) map[string]any {
	out := map[string]any{
		"created": slotsValue(res.Created),
		"skipped": skippedValue(res.Skipped),
	}
	if res.Schedule != nil {
		out["schedule_id"] = res.Schedule.ID.String()
	}
	return out
}

func (s *SchedulingService) ListSchedules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}

	page, size, err := pageRequest(req)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.ListSchedules(ctx, ownerID, page, size)
	if err != nil {
		return nil, toStatus("list schedules", err)
	}
	items := make([]any, 0, len(res.Items))
	for i := range res.Items {
		v, err := scheduleValue(&res.Items[i])
		if err != nil {
			return nil, toStatus("list schedules", err)
		}
		items = append(items, v)
	}
	return respond("list schedules", pageValue(res, "schedules", items))
}

func (s *SchedulingService) ListAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}
	asOf, err := optionalTime(req, "as_of")
	if err != nil {
		return nil, err
	}
	page, size, err := pageRequest(req)
	if err != nil {
		return nil, err
	}

	var at = s.engine.Clock().Now()
	if asOf != nil {
		at = *asOf
	}
	res, err := s.engine.ListAvailability(ctx, ownerID, at, page, size)
	if err != nil {
		return nil, toStatus("list availability", err)
	}
	return respond("list availability", pageValue(res, "slots", slotsValue(res.Items)))
}

func (s *SchedulingService) DeleteAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}
	slotID, err := requireUUID(req, "slot_id")
	if err != nil {
		return nil, err
	}

	if err := s.engine.DeleteAvailability(ctx, ownerID, slotID); err != nil {
		return nil, toStatus("delete availability", err)
	}
	return respond("delete availability", map[string]any{"deleted": true})
}

func (s *SchedulingService) BookAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}
	slotID, err := optionalUUID(req, "slot_id")
	if err != nil {
		return nil, err
	}
	start, err := optionalTime(req, "start")
	if err != nil {
		return nil, err
	}
	typeID, err := optionalUUID(req, "consultation_type_id")
	if err != nil {
		return nil, err
	}
	duration, err := getInt(req, "duration_min")
	if err != nil {
		return nil, err
	}

	appt, err := s.engine.BookAppointment(ctx, scheduling.BookRequest{
		OwnerID:            ownerID,
		SlotID:             slotID,
		Start:              start,
		DurationMin:        duration,
		ConsultationTypeID: typeID,
		ClientName:         getString(req, "client_name"),
		ClientContact:      getString(req, "client_contact"),
		Notes:              getString(req, "notes"),
	})
	if err != nil {
		return nil, toStatus("book appointment", err)
	}
	return respond("book appointment", map[string]any{"appointment": appointmentValue(appt)})
}

func (s *SchedulingService) GetAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}
	id, err := requireUUID(req, "appointment_id")
	if err != nil {
		return nil, err
	}

	appt, err := s.engine.GetAppointment(ctx, ownerID, id)
	if err != nil {
		return nil, toStatus("get appointment", err)
	}
	return respond("get appointment", map[string]any{"appointment": appointmentValue(appt)})
}

func (s *SchedulingService) RescheduleAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}
	id, err := requireUUID(req, "appointment_id")
	if err != nil {
		return nil, err
	}
	slotID, err := optionalUUID(req, "new_slot_id")
	if err != nil {
		return nil, err
	}
	start, err := optionalTime(req, "new_start")
	if err != nil {
		return nil, err
	}
	duration, err := getInt(req, "duration_min")
	if err != nil {
		return nil, err
	}

	res, err := s.engine.RescheduleAppointment(ctx, scheduling.RescheduleRequest{
		AppointmentID: id,
		OwnerID:       ownerID,
		NewSlotID:     slotID,
		NewStart:      start,
		DurationMin:   duration,
	})
	if err != nil {
		return nil, toStatus("reschedule appointment", err)
	}
	return respond("reschedule appointment", map[string]any{
		"appointment": appointmentValue(res.Appointment),
		"release":     releaseValue(res.Release),
		"unchanged":   res.Unchanged,
	})
}

func (s *SchedulingService) CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}
	id, err := requireUUID(req, "appointment_id")
	if err != nil {
		return nil, err
	}

	res, err := s.engine.CancelAppointment(ctx, scheduling.CancelRequest{AppointmentID: id, OwnerID: ownerID})
	if err != nil {
		return nil, toStatus("cancel appointment", err)
	}
	return respond("cancel appointment", map[string]any{
		"appointment":       appointmentValue(res.Appointment),
		"release":           releaseValue(res.Release),
		"already_cancelled": res.AlreadyCancelled,
	})
}

func (s *SchedulingService) ListAppointments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := requireUUID(req, "owner_id")
	if err != nil {
		return nil, err
	}
	from, err := requireTime(req, "from")
	if err != nil {
		return nil, err
	}
	to, err := requireTime(req, "to")
	if err != nil {
		return nil, err
	}

	list, err := s.engine.ListAppointments(ctx, ownerID, from, to, getBool(req, "include_cancelled"))
	if err != nil {
		return nil, toStatus("list appointments", err)
	}
	return respond("list appointments", map[string]any{"appointments": appointmentsValue(list)})
}

func (s *SchedulingService) ListPendingReminders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	from, err := requireTime(req, "from")
	if err != nil {
		return nil, err
	}
	to, err := requireTime(req, "to")
	if err != nil {
		return nil, err
	}

	kind := model.ReminderKind(getString(req, "kind"))
	list, err := s.engine.PendingReminders(ctx, kind, from, to)
	if err != nil {
		return nil, toStatus("list pending reminders", err)
	}
	return respond("list pending reminders", map[string]any{"appointments": appointmentsValue(list)})
}

func (s *SchedulingService) MarkReminderSent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireUUID(req, "appointment_id")
	if err != nil {
		return nil, err
	}

	marked, err := s.engine.MarkReminderSent(ctx, id, model.ReminderKind(getString(req, "kind")))
	if err != nil {
		return nil, toStatus("mark reminder sent", err)
	}
	return respond("mark reminder sent", map[string]any{"marked": marked})
}

// RunExpirySweep — внеплановая чистка, например после массового импорта.
func (s *SchedulingService) RunExpirySweep(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.sweeper == nil {
		return nil, status.Error(codes.FailedPrecondition, "expiry sweep is not configured")
	}

	res, err := s.sweeper.RunOnce(ctx)
	if err != nil {
		return nil, toStatus("run expiry sweep", err)
	}
	return respond("run expiry sweep", map[string]any{
		"cutoff":               formatTime(res.Cutoff.In(s.engine.Clock().Location())),
		"slots_deleted":        res.SlotsDeleted,
		"appointments_deleted": res.AppointmentsDeleted,
		"skipped":              res.Skipped,
	})
}

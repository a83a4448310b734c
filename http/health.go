package http

// Liveness answers a liveness probe. If the process can answer at all it is
// alive, so it has no dependencies.
func Liveness(_ *Request) Responder {
	return Text("ok")
}

// Readiness answers a readiness probe: 200 while serving, 503 once draining
// began so the load balancer stops routing new traffic here.
func (s *Server) Readiness(_ *Request) Responder {
	if s.shutdown.Draining() {
		return Text("draining").WithStatus(StatusServiceUnavailable)
	}
	return Text("ready")
}

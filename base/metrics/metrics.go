package metrics

const (
	ReceiverReqsSentN = "lsltime_receiver_reqs_sent_total"
	ReceiverReqsSentH = "The total number of time probe requests sent"

	ReceiverPktsReceivedN = "lsltime_receiver_pkts_received_total"
	ReceiverPktsReceivedH = "The total number of packets received on time probe sockets"

	ReceiverRespsAcceptedN = "lsltime_receiver_resps_accepted_total"
	ReceiverRespsAcceptedH = "The total number of time probe replies accepted as observations"

	ReceiverRespsDiscardedN = "lsltime_receiver_resps_discarded_total"
	ReceiverRespsDiscardedH = "The total number of stale, foreign or malformed replies discarded"

	ReceiverProbeTimeoutsN = "lsltime_receiver_probe_timeouts_total"
	ReceiverProbeTimeoutsH = "The total number of time probes that timed out"

	ReceiverWavesCompletedN = "lsltime_receiver_waves_completed_total"
	ReceiverWavesCompletedH = "The total number of probe waves that produced an estimate"

	ReceiverWavesEmptyN = "lsltime_receiver_waves_empty_total"
	ReceiverWavesEmptyH = "The total number of probe waves without any observation"

	ReceiverCorrectionN = "lsltime_receiver_correction_seconds"
	ReceiverCorrectionH = "The most recently published time correction"

	ReceiverUncertaintyN = "lsltime_receiver_uncertainty_seconds"
	ReceiverUncertaintyH = "The error bound of the most recently published time correction"

	ResponderPktsReceivedN = "lsltime_responder_pkts_received_total"
	ResponderPktsReceivedH = "The total number of packets received by the time responder"

	ResponderReqsAcceptedN = "lsltime_responder_reqs_accepted_total"
	ResponderReqsAcceptedH = "The total number of time probe requests accepted"

	ResponderReqsServedN = "lsltime_responder_reqs_served_total"
	ResponderReqsServedH = "The total number of time probe requests served"
)

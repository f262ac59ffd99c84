package paxos

import (
	"math/rand"
	"sync"
	"time"

	"github.com/latticedb/coordinator/ballot"
	"github.com/latticedb/coordinator/coordinaterr"
	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/quorum"
	"github.com/latticedb/coordinator/topology"
)

// Driver is the Paxos Driver (spec.md §4.G): one CAS attempt is a single
// S0->S1->S2->S3 pass through attempt(); Cas wraps it in the jittered-
// backoff contention-retry loop spec.md §9 describes as "an outer loop with
// transitions as data" rather than exceptions.
type Driver struct {
	local    topology.Endpoint
	resolver *topology.Resolver
	messenger messaging.Messenger
	acceptor *Acceptor
	gen      *ballot.Generator

	contentionTimeout time.Duration
	rpcTimeout        time.Duration
	commitTimeout     time.Duration

	onContention func()
}

// Option configures optional Driver behavior.
type Option func(*Driver)

// WithContentionMetric registers a callback incremented once per observed
// PREEMPTED transition (spec.md §6 MBean surface's casWriteMetrics
// contention counter).
func WithContentionMetric(cb func()) Option {
	return func(d *Driver) { d.onContention = cb }
}

// New constructs a Driver. contentionTimeout bounds the whole Cas call
// (spec.md §4.G "Termination"); rpcTimeout bounds each prepare/propose
// round; commitTimeout bounds S3's acknowledgement wait.
func New(local topology.Endpoint, resolver *topology.Resolver, messenger messaging.Messenger, acceptor *Acceptor, gen *ballot.Generator, contentionTimeout, rpcTimeout, commitTimeout time.Duration, opts ...Option) *Driver {
	d := &Driver{
		local:             local,
		resolver:          resolver,
		messenger:         messenger,
		acceptor:          acceptor,
		gen:               gen,
		contentionTimeout: contentionTimeout,
		rpcTimeout:        rpcTimeout,
		commitTimeout:     commitTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cas drives a single lightweight transaction to completion, retrying on
// PREEMPTED/INCOMPLETE_PRIOR/MISSING_MRC until the contention timeout
// expires (spec.md §4.G's state diagram).
func (d *Driver) Cas(req CASRequest) (CASResult, error) {
	deadline := time.Now().Add(d.contentionTimeout)
	floor := ballot.Zero

	for {
		if time.Now().After(deadline) {
			blockFor := d.resolver.Placement.BlockFor(quorumCL(req.SerialConsistency), req.Keyspace)
			return CASResult{}, coordinaterr.WriteTimeout(topology.WriteTypeCAS, req.SerialConsistency, 0, blockFor)
		}

		res, nextFloor, err := d.attempt(req, floor)
		if err != nil {
			return CASResult{}, err
		}

		switch res.outcome {
		case OutcomeApplied, OutcomeConditionFailed:
			return CASResult{Outcome: res.outcome, Observed: res.observed}, nil
		case OutcomePreempted:
			if d.onContention != nil {
				d.onContention()
			}
			floor = nextFloor
			time.Sleep(time.Duration(rand.Intn(100)) * time.Millisecond)
		case OutcomeIncompletePrior, OutcomeMissingMRC:
			floor = nextFloor
		}
	}
}

type attemptResult struct {
	outcome    Outcome
	observed   Observed
	nextBallot ballot.Ballot
}

// attempt runs one S0->S1->S2->S3 pass. It returns a non-nil error only for
// conditions that should abort the whole Cas call outright (Unavailable,
// a read/propose/commit timeout) rather than trigger a retry.
func (d *Driver) attempt(req CASRequest, floor ballot.Ballot) (attemptResult, error) {
	b := d.gen.Next(floor)

	natural, pending := d.resolver.Resolve(req.Keyspace, req.Key)
	all := append(append([]topology.Endpoint(nil), natural...), pending...)
	alive := d.resolver.FilterAlive(all)
	blockFor := d.resolver.Placement.BlockFor(quorumCL(req.SerialConsistency), req.Keyspace)
	if len(alive) < blockFor {
		return attemptResult{}, coordinaterr.Unavailable(req.SerialConsistency, len(alive), blockFor)
	}

	responses, err := d.sendPrepare(req.Keyspace, req.Key, b, alive, blockFor)
	if err != nil {
		return attemptResult{}, err
	}

	var maxRefusal ballot.Ballot
	promisedCount := 0
	var bestAccepted *Commit
	var bestMRC Commit

	for _, resp := range responses {
		if !resp.Promised {
			if maxRefusal.Less(resp.State.PromisedBallot) {
				maxRefusal = resp.State.PromisedBallot
			}
			continue
		}
		promisedCount++
		if resp.State.HasAccepted {
			if bestAccepted == nil || bestAccepted.Ballot.Less(resp.State.AcceptedCommit.Ballot) {
				c := resp.State.AcceptedCommit
				bestAccepted = &c
			}
		}
		if bestMRC.Ballot.Less(resp.State.MostRecentCommit.Ballot) {
			bestMRC = resp.State.MostRecentCommit
		}
	}

	if promisedCount < blockFor {
		return attemptResult{outcome: OutcomePreempted, nextBallot: maxRefusal}, nil
	}

	behindMRC := make([]topology.Endpoint, 0, len(responses))
	for ep, resp := range responses {
		if resp.Promised && resp.State.MostRecentCommit.Ballot.Less(bestMRC.Ballot) {
			behindMRC = append(behindMRC, ep)
		}
	}

	if bestAccepted != nil && bestMRC.Ballot.Less(bestAccepted.Ballot) {
		// INCOMPLETE_PRIOR: finish the dangling proposal under our new
		// ballot before restarting, so a crashed coordinator's half-done
		// CAS never blocks the key forever.
		repackaged := Commit{Ballot: b, Keyspace: bestAccepted.Keyspace, Key: bestAccepted.Key, Update: bestAccepted.Update}
		if accepted, _, _ := d.propose(repackaged, alive, blockFor); accepted {
			_ = d.commitBroadcast(repackaged, all, topology.CLQuorum)
		}
		return attemptResult{outcome: OutcomeIncompletePrior, nextBallot: b}, nil
	}

	if len(behindMRC) > 0 && !bestMRC.Ballot.IsZero() {
		// MISSING_MRC: fire-and-forget the commit to stragglers and
		// restart; we do not wait for them (spec.md §4.G S0).
		for _, ep := range behindMRC {
			d.fireCommit(bestMRC, ep)
		}
		return attemptResult{outcome: OutcomeMissingMRC, nextBallot: b}, nil
	}

	observed, err := d.read(req, alive, blockFor)
	if err != nil {
		return attemptResult{}, err
	}

	ok, err := req.Precondition(observed)
	if err != nil {
		return attemptResult{}, err
	}
	if !ok {
		return attemptResult{outcome: OutcomeConditionFailed, observed: observed}, nil
	}

	update, err := req.BuildUpdate(observed)
	if err != nil {
		return attemptResult{}, err
	}
	commit := Commit{Ballot: b, Keyspace: req.Keyspace, Key: req.Key, Update: update}

	accepted, maxPromise, err := d.propose(commit, alive, blockFor)
	if err != nil {
		return attemptResult{}, err
	}
	if !accepted {
		// A higher ballot seen anywhere retries as PREEMPTED; any other
		// shortfall (plain refusals, stragglers, timeout) is a terminal
		// write-timeout for CAS writes (spec.md §4.G S2).
		if !maxPromise.IsZero() && commit.Ballot.Less(maxPromise) {
			return attemptResult{outcome: OutcomePreempted, nextBallot: maxPromise}, nil
		}
		return attemptResult{}, coordinaterr.WriteTimeout(topology.WriteTypeCAS, req.SerialConsistency, 0, blockFor)
	}

	if err := d.commitBroadcast(commit, all, req.CommitConsistency); err != nil {
		return attemptResult{}, err
	}

	return attemptResult{outcome: OutcomeApplied, observed: observed}, nil
}

func quorumCL(serial topology.ConsistencyLevel) topology.ConsistencyLevel {
	if serial == topology.CLLocalSerial {
		return topology.CLLocalQuorum
	}
	return topology.CLQuorum
}

// --------------------------------------------------------------------------
// S0: Prepare
// --------------------------------------------------------------------------

type prepareResultSet struct {
	mu   sync.Mutex
	vals map[topology.Endpoint]prepareResponse
}

func (d *Driver) sendPrepare(keyspace, key string, b ballot.Ballot, targets []topology.Endpoint, blockFor int) (map[topology.Endpoint]prepareResponse, error) {
	results := &prepareResultSet{vals: make(map[topology.Endpoint]prepareResponse)}
	h := quorum.NewWriteHandler(targets, 0, topology.CLQuorum, keyspace, topology.WriteTypeCAS, blockFor, d.rpcTimeout)

	for _, target := range targets {
		target := target
		if target == d.local {
			go func() {
				promised, state, err := d.acceptor.Prepare(keyspace, key, b)
				if err != nil {
					h.OnFailure(target)
					return
				}
				results.mu.Lock()
				results.vals[target] = prepareResponse{Promised: promised, State: state}
				results.mu.Unlock()
				h.OnResponse(target)
			}()
			continue
		}

		req := prepareRequest{Ballot: b, Keyspace: keyspace, Key: key}
		payload, err := encode(req)
		if err != nil {
			h.OnFailure(target)
			continue
		}
		_, err = d.messenger.SendRRWithFailure(messaging.VerbPrepareCommit, payload, target,
			func(from topology.Endpoint, resp messaging.Response) {
				if !resp.Ok {
					h.OnFailure(from)
					return
				}
				parsed, err := decode[prepareResponse](resp.Payload)
				if err != nil {
					h.OnFailure(from)
					return
				}
				results.mu.Lock()
				results.vals[from] = parsed
				results.mu.Unlock()
				h.OnResponse(from)
			},
			func(from topology.Endpoint, _ string) { h.OnFailure(from) },
		)
		if err != nil {
			d.messenger.IncrementDroppedMessages(messaging.VerbPrepareCommit)
			h.OnFailure(target)
		}
	}

	if err := h.Await(); err != nil {
		return nil, err
	}
	results.mu.Lock()
	defer results.mu.Unlock()
	out := make(map[topology.Endpoint]prepareResponse, len(results.vals))
	for k, v := range results.vals {
		out[k] = v
	}
	return out, nil
}

// --------------------------------------------------------------------------
// S1: Read
// --------------------------------------------------------------------------

type readResultSet struct {
	mu   sync.Mutex
	best Observed
	any  bool
}

func (d *Driver) read(req CASRequest, targets []topology.Endpoint, blockFor int) (Observed, error) {
	contact := targets
	if len(contact) > blockFor {
		contact = contact[:blockFor]
	}

	results := &readResultSet{}
	h := quorum.NewReadHandler(contact, 0, quorumCL(req.SerialConsistency), req.Keyspace, blockFor, d.rpcTimeout)

	for _, target := range contact {
		target := target
		if target == d.local {
			go func() {
				value, timestamp, found, err := d.acceptor.Read(req.Key)
				if err != nil {
					h.OnFailure(target)
					return
				}
				recordObserved(results, Observed{Value: value, Timestamp: timestamp, Found: found})
				h.OnResponse(target)
			}()
			continue
		}

		payload, _ := encode(readCommand{Keyspace: req.Keyspace, Key: req.Key, Table: req.Table})
		_, err := d.messenger.SendRRWithFailure(messaging.VerbReadCommand, payload, target,
			func(from topology.Endpoint, resp messaging.Response) {
				if !resp.Ok {
					h.OnFailure(from)
					return
				}
				observed, err := decode[Observed](resp.Payload)
				if err != nil {
					h.OnFailure(from)
					return
				}
				recordObserved(results, observed)
				h.OnResponse(from)
			},
			func(from topology.Endpoint, _ string) { h.OnFailure(from) },
		)
		if err != nil {
			d.messenger.IncrementDroppedMessages(messaging.VerbReadCommand)
			h.OnFailure(target)
		}
	}

	if err := h.Await(); err != nil {
		return Observed{}, err
	}
	results.mu.Lock()
	defer results.mu.Unlock()
	return results.best, nil
}

func recordObserved(results *readResultSet, o Observed) {
	results.mu.Lock()
	defer results.mu.Unlock()
	if !results.any || (o.Found && o.Timestamp > results.best.Timestamp) {
		results.best = o
		results.any = true
	}
}

// readCommand mirrors read.Command's wire shape without importing the read
// package, since the Paxos Driver's read is a plain quorum fetch, not the
// full digest/speculative-retry pipeline read.Executor runs.
type readCommand struct {
	Keyspace string
	Key      string
	Table    string
}

// --------------------------------------------------------------------------
// S2: Propose
// --------------------------------------------------------------------------

func (d *Driver) propose(commit Commit, targets []topology.Endpoint, blockFor int) (accepted bool, maxPromise ballot.Ballot, err error) {
	h := quorum.NewWriteHandler(targets, 0, topology.CLQuorum, commit.Keyspace, topology.WriteTypeCAS, blockFor, d.rpcTimeout)

	var mu sync.Mutex
	acceptedCount := 0

	for _, target := range targets {
		target := target
		if target == d.local {
			go func() {
				ok, promise, lerr := d.acceptor.Propose(commit)
				if lerr != nil || !ok {
					mu.Lock()
					if maxPromise.Less(promise) {
						maxPromise = promise
					}
					mu.Unlock()
					h.OnFailure(target)
					return
				}
				mu.Lock()
				acceptedCount++
				mu.Unlock()
				h.OnResponse(target)
			}()
			continue
		}

		req := proposeRequest{Commit: commit}
		payload, perr := encode(req)
		if perr != nil {
			h.OnFailure(target)
			continue
		}
		_, serr := d.messenger.SendRRWithFailure(messaging.VerbProposeCommit, payload, target,
			func(from topology.Endpoint, resp messaging.Response) {
				if !resp.Ok {
					h.OnFailure(from)
					return
				}
				parsed, derr := decode[proposeResponse](resp.Payload)
				if derr != nil {
					h.OnFailure(from)
					return
				}
				if !parsed.Accepted {
					mu.Lock()
					if maxPromise.Less(parsed.CurrentPromise) {
						maxPromise = parsed.CurrentPromise
					}
					mu.Unlock()
					h.OnFailure(from)
					return
				}
				mu.Lock()
				acceptedCount++
				mu.Unlock()
				h.OnResponse(from)
			},
			func(from topology.Endpoint, _ string) { h.OnFailure(from) },
		)
		if serr != nil {
			d.messenger.IncrementDroppedMessages(messaging.VerbProposeCommit)
			h.OnFailure(target)
		}
	}

	awaitErr := h.Await()
	mu.Lock()
	defer mu.Unlock()
	if acceptedCount >= blockFor {
		return true, ballot.Zero, nil
	}
	if awaitErr != nil {
		if _, ok := coordinaterr.As(awaitErr); ok {
			return false, maxPromise, nil
		}
		return false, ballot.Zero, awaitErr
	}
	return false, maxPromise, nil
}

// --------------------------------------------------------------------------
// S3: Commit
// --------------------------------------------------------------------------

// commitBroadcast sends commit to every natural and pending endpoint,
// waiting for acknowledgements per commitCL unless commitCL is CLAny, in
// which case S3 does not wait at all (spec.md §4.G S3).
func (d *Driver) commitBroadcast(commit Commit, targets []topology.Endpoint, commitCL topology.ConsistencyLevel) error {
	if commitCL == topology.CLAny {
		for _, target := range targets {
			d.fireCommit(commit, target)
		}
		return nil
	}

	blockFor := d.resolver.Placement.BlockFor(commitCL, commit.Keyspace)
	h := quorum.NewWriteHandler(targets, 0, commitCL, commit.Keyspace, topology.WriteTypeCAS, blockFor, d.commitTimeout)

	for _, target := range targets {
		target := target
		if target == d.local {
			go func() {
				if err := d.acceptor.Commit(commit); err != nil {
					h.OnFailure(target)
					return
				}
				h.OnResponse(target)
			}()
			continue
		}
		payload, err := encode(commitRequest{Commit: commit})
		if err != nil {
			h.OnFailure(target)
			continue
		}
		_, err = d.messenger.SendRRWithFailure(messaging.VerbCommitCommit, payload, target,
			func(from topology.Endpoint, resp messaging.Response) {
				if resp.Ok {
					h.OnResponse(from)
				} else {
					h.OnFailure(from)
				}
			},
			func(from topology.Endpoint, _ string) { h.OnFailure(from) },
		)
		if err != nil {
			d.messenger.IncrementDroppedMessages(messaging.VerbCommitCommit)
			h.OnFailure(target)
		}
	}

	return h.Await()
}

// fireCommit sends commit to a single endpoint without waiting for any
// response, used for MISSING_MRC repair and CL=any's degraded S3.
func (d *Driver) fireCommit(commit Commit, target topology.Endpoint) {
	if target == d.local {
		go func() { _ = d.acceptor.Commit(commit) }()
		return
	}
	payload, err := encode(commitRequest{Commit: commit})
	if err != nil {
		return
	}
	_ = d.messenger.SendOneWay(messaging.VerbCommitCommit, payload, target)
}

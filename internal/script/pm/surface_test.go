package pm

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiforge/forge/backend/internal/script"
)

func testJob(phase script.Phase) *script.ExecutionJob {
	return &script.ExecutionJob{
		Phase: phase,
		Request: script.RequestSnapshot{
			URL:     "https://api.example.com/users",
			Method:  "GET",
			Headers: map[string]string{"Accept": "application/json"},
		},
		Environment:         map[string]string{"base_url": "https://api.example.com"},
		Globals:             map[string]string{"team": "platform"},
		CollectionVariables: map[string]string{"version": "v2"},
	}
}

// runScript builds the pm surface for job and evaluates src against it.
func runScript(t *testing.T, job *script.ExecutionJob, src string) (*Captures, error) {
	t.Helper()
	rt := goja.New()
	caps := NewCaptures()
	require.NoError(t, Build(rt, job, caps))
	_, err := rt.RunString(src)
	return caps, err
}

func TestEnvironmentNamespace(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		if (pm.environment.get('base_url') !== 'https://api.example.com') throw new Error('bad read');
		if (!pm.environment.has('base_url')) throw new Error('bad has');
		pm.environment.set('token', 'abc123');
		if (pm.environment.get('token') !== 'abc123') throw new Error('set not visible');
		pm.environment.unset('base_url');
		if (pm.environment.has('base_url')) throw new Error('unset not visible');
	`)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"token":    "abc123",
		"base_url": "",
	}, caps.EnvironmentUpdates)
}

func TestGlobalsNamespace(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		pm.globals.set('run_id', 42);
	`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"run_id": "42"}, caps.GlobalUpdates)
	assert.Empty(t, caps.EnvironmentUpdates)
}

func TestCollectionVariablesStayLocal(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		if (pm.collectionVariables.get('version') !== 'v2') throw new Error('bad read');
		pm.collectionVariables.set('version', 'v3');
		if (pm.collectionVariables.get('version') !== 'v3') throw new Error('write not visible');
	`)
	require.NoError(t, err)

	// Visible inside the script, never surfaced in the result.
	assert.Empty(t, caps.EnvironmentUpdates)
	assert.Empty(t, caps.GlobalUpdates)
}

func TestNamespaceValuesStringify(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		pm.environment.set('obj', {b: 2, a: 1});
		pm.environment.set('num', 7);
		pm.environment.set('nothing', null);
	`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, caps.EnvironmentUpdates["obj"])
	assert.Equal(t, "7", caps.EnvironmentUpdates["num"])
	assert.Equal(t, "null", caps.EnvironmentUpdates["nothing"])
}

func TestRequestMutators(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		pm.request.setUrl('https://api.example.com/orders');
		pm.request.setMethod('POST');
		pm.request.setBody({id: 7});
		if (pm.request.url !== 'https://api.example.com/orders') throw new Error('url not live');
		if (pm.request.method !== 'POST') throw new Error('method not live');
	`)
	require.NoError(t, err)

	require.True(t, caps.RequestTouched)
	require.NotNil(t, caps.Patch.URL)
	assert.Equal(t, "https://api.example.com/orders", *caps.Patch.URL)
	require.NotNil(t, caps.Patch.Method)
	assert.Equal(t, "POST", *caps.Patch.Method)
	require.NotNil(t, caps.Patch.Body)
	assert.Equal(t, `{"id":7}`, *caps.Patch.Body)
}

func TestRequestUntouchedLeavesNoPatch(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		var m = pm.request.method;
		pm.request.headers.get('Accept');
	`)
	require.NoError(t, err)
	assert.False(t, caps.RequestTouched)
	assert.True(t, caps.Patch.Empty())
}

func TestHeaderMutations(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		pm.request.headers.add({key: 'X-Trace', value: 't-1'});
		pm.request.headers.upsert({key: 'X-Trace', value: 't-2'});
		pm.request.headers.remove('Accept');
		if (pm.request.headers.get('X-Trace') !== 't-2') throw new Error('upsert lost');
		if (pm.request.headers.has('Accept')) throw new Error('remove lost');
		if (pm.request.headers.count() !== 1) throw new Error('bad count');
	`)
	require.NoError(t, err)

	require.True(t, caps.RequestTouched)
	require.Contains(t, caps.Patch.Headers, "X-Trace")
	require.NotNil(t, caps.Patch.Headers["X-Trace"])
	assert.Equal(t, "t-2", *caps.Patch.Headers["X-Trace"])

	require.Contains(t, caps.Patch.Headers, "Accept")
	assert.Nil(t, caps.Patch.Headers["Accept"])
}

func TestHeaderEachOrder(t *testing.T) {
	_, err := runScript(t, testJob(script.PhasePreRequest), `
		pm.request.headers.add({key: 'Z-Last', value: '1'});
		var seen = [];
		pm.request.headers.each(function(h) { seen.push(h.key); });
		if (seen.join(',') !== 'Accept,Z-Last') throw new Error('order: ' + seen.join(','));
	`)
	assert.NoError(t, err)
}

func TestHeaderAddRejectsMalformedArgument(t *testing.T) {
	_, err := runScript(t, testJob(script.PhasePreRequest), `
		pm.request.headers.add('X-Trace: t-1');
	`)
	require.Error(t, err)
	assert.Contains(t, ErrorMessage(err), "headers.add expects an object")
}

func TestUpdateAuth(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		pm.request.updateAuth('bearer', 'token', 'first');
		pm.request.updateAuth('bearer', 'token', 'second');
		if (pm.request.auth.type !== 'bearer') throw new Error('auth not live');
	`)
	require.NoError(t, err)

	require.NotNil(t, caps.Patch.Auth)
	assert.Equal(t, "bearer", caps.Patch.Auth.Type)
	params := caps.Patch.Auth.Params["bearer"]
	require.Len(t, params, 1)
	assert.Equal(t, "second", params[0].Value)
}

func TestSetAndRemoveAuth(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		pm.request.setAuth({type: 'basic', basic: [{key: 'username', value: 'ada'}]});
		if (pm.request.auth.type !== 'basic') throw new Error('setAuth not live');
		pm.request.removeAuth();
		if (pm.request.auth !== null) throw new Error('removeAuth not live');
	`)
	require.NoError(t, err)

	assert.Nil(t, caps.Patch.Auth)
	assert.True(t, caps.Patch.AuthRemoved)
}

func TestResponseView(t *testing.T) {
	job := testJob(script.PhaseTest)
	job.Response = &script.ResponseSnapshot{
		Code:         200,
		Status:       "200 OK",
		Headers:      map[string]string{"Content-Type": "application/json"},
		Body:         `{"id": 7, "name": "ada"}`,
		ResponseTime: 42,
	}

	_, err := runScript(t, job, `
		if (pm.response.code !== 200) throw new Error('bad code');
		if (pm.response.responseTime !== 42) throw new Error('bad time');
		if (pm.response.body.name !== 'ada') throw new Error('body not parsed');
		if (pm.response.json().id !== 7) throw new Error('bad json()');
		if (pm.response.text().indexOf('ada') < 0) throw new Error('bad text()');
		pm.response.to.have.status(200);
	`)
	assert.NoError(t, err)
}

func TestResponseStatusChainFails(t *testing.T) {
	job := testJob(script.PhaseTest)
	job.Response = &script.ResponseSnapshot{Code: 503, Status: "503 Service Unavailable"}

	_, err := runScript(t, job, `pm.response.to.have.status(200)`)
	require.Error(t, err)
	assert.Contains(t, ErrorMessage(err), "expected response to have status 200 but got 503")
}

func TestResponseJSONRejectsNonJSONBody(t *testing.T) {
	job := testJob(script.PhaseTest)
	job.Response = &script.ResponseSnapshot{Code: 200, Body: "<html></html>"}

	_, err := runScript(t, job, `
		if (pm.response.body !== '<html></html>') throw new Error('raw body expected');
		pm.response.json();
	`)
	require.Error(t, err)
	assert.Contains(t, ErrorMessage(err), "not valid JSON")
}

func TestResponseAbsentInPreRequestPhase(t *testing.T) {
	_, err := runScript(t, testJob(script.PhasePreRequest), `
		if (typeof pm.response !== 'undefined') throw new Error('response leaked into pre-request');
	`)
	assert.NoError(t, err)
}

func TestConsoleCapture(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		console.log('hello', 'world');
		console.info(7);
		console.warn({b: 2, a: 1});
		console.error('boom');
		console.debug(null);
		alert('look');
	`)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"[LOG] hello world",
		"[INFO] 7",
		`[WARN] {"a":1,"b":2}`,
		"[ERROR] boom",
		"[DEBUG] null",
		"[ALERT] look",
	}, caps.Console)
}

func TestTestRegistrar(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		pm.test('passes', function() {});
		pm.test('fails', function() { throw new Error('nope'); });
		pm.test('still runs', function() {});
		pm.test('bad callback', 'not a function');
	`)
	require.NoError(t, err)

	require.Len(t, caps.Tests, 4)
	assert.True(t, caps.Tests[0].Passed)
	assert.False(t, caps.Tests[1].Passed)
	assert.Contains(t, caps.Tests[1].Error, "nope")
	assert.True(t, caps.Tests[2].Passed)
	assert.False(t, caps.Tests[3].Passed)
	assert.Equal(t, "test callback is not a function", caps.Tests[3].Error)
}

func TestExpectInsideTest(t *testing.T) {
	caps, err := runScript(t, testJob(script.PhasePreRequest), `
		pm.test('assertion fails', function() { pm.expect(1).to.equal(2); });
	`)
	require.NoError(t, err)

	require.Len(t, caps.Tests, 1)
	assert.False(t, caps.Tests[0].Passed)
	assert.Contains(t, caps.Tests[0].Error, "expected 1 to equal 2")
}

func TestSendRequestRaises(t *testing.T) {
	_, err := runScript(t, testJob(script.PhasePreRequest), `pm.sendRequest('https://example.com')`)
	require.Error(t, err)
	assert.Contains(t, ErrorMessage(err), "pm.sendRequest is not implemented")
}

func TestErrorMessageShapes(t *testing.T) {
	rt := goja.New()

	_, err := rt.RunString(`throw new TypeError('bad thing')`)
	require.Error(t, err)
	assert.Equal(t, "TypeError: bad thing", ErrorMessage(err))

	_, err = rt.RunString(`throw 'plain string'`)
	require.Error(t, err)
	assert.Equal(t, "plain string", ErrorMessage(err))
}
